//go:build linux

package ioloop

import (
	"testing"
	"time"

	"github.com/fluxorio/kestrel/pkg/engineerr"
	"golang.org/x/sys/unix"
)

// TestPipeReadReadyFiresOnce grounds spec.md §9's pipe example: register
// the read end, write one byte, expect exactly one socket_read within a
// tick, then no further events until another write.
func TestPipeReadReadyFiresOnce(t *testing.T) {
	fds, err := unixPipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	readFd, writeFd := fds[0], fds[1]
	defer unix.Close(readFd)
	defer unix.Close(writeFd)

	if err := unix.SetNonblock(readFd, true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}

	svcFactory := New()
	svc, err := svcFactory(nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	ioSvc := svc.(*IoEventLoopService)
	if err := ioSvc.OnCreate(nil); err != nil {
		t.Fatalf("OnCreate: %v", err)
	}
	defer ioSvc.OnDestroy(nil)

	if err := ioSvc.AddFd(readFd, AddOptions{In: true, EdgeTrigger: true}); err != nil {
		t.Fatalf("AddFd: %v", err)
	}

	if _, err := unix.Write(writeFd, []byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var sawRead bool
	deadline := time.After(time.Second)
	for !sawRead {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for socket_read")
		default:
		}
		events, err := ioSvc.r.poll()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		for _, ev := range events {
			if ev.fd == readFd && ev.read {
				sawRead = true
			}
		}
	}

	buf, err := ioSvc.ReadFromFd(readFd)
	if err != nil {
		t.Fatalf("ReadFromFd: %v", err)
	}
	if len(buf) != 1 || buf[0] != 1 {
		t.Fatalf("unexpected buffer: %v", buf)
	}

	events, err := ioSvc.r.poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	for _, ev := range events {
		if ev.fd == readFd {
			t.Fatalf("drained fd produced a further event without another write: %+v", ev)
		}
	}
}

func TestAddFdWithoutCreateFails(t *testing.T) {
	svcFactory := New()
	svc, _ := svcFactory(nil)
	ioSvc := svc.(*IoEventLoopService)

	if err := ioSvc.AddFd(0, AddOptions{In: true}); !engineerr.Is(err, engineerr.InvalidEpollFd) {
		t.Fatalf("expected InvalidEpollFd, got %v", err)
	}
}

func TestAddThenRemoveLeavesNoStaleEvents(t *testing.T) {
	fds, err := unixPipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	readFd, writeFd := fds[0], fds[1]
	defer unix.Close(readFd)
	defer unix.Close(writeFd)
	unix.SetNonblock(readFd, true)

	svcFactory := New()
	svc, _ := svcFactory(nil)
	ioSvc := svc.(*IoEventLoopService)
	if err := ioSvc.OnCreate(nil); err != nil {
		t.Fatalf("OnCreate: %v", err)
	}
	defer ioSvc.OnDestroy(nil)

	if err := ioSvc.AddFd(readFd, AddOptions{In: true}); err != nil {
		t.Fatalf("AddFd: %v", err)
	}
	if err := ioSvc.RemoveFd(readFd); err != nil {
		t.Fatalf("RemoveFd: %v", err)
	}

	unix.Write(writeFd, []byte{1})
	events, err := ioSvc.r.poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	for _, ev := range events {
		if ev.fd == readFd {
			t.Fatalf("removed fd still produced an event: %+v", ev)
		}
	}
}

func unixPipe() ([2]int, error) {
	var fds [2]int
	err := unix.Pipe(fds[:])
	return fds, err
}
