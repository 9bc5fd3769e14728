//go:build linux

package ioloop

import (
	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/types"
	"golang.org/x/sys/unix"
)

const maxEvents = 256
const readChunk = 4096

// linuxReactor is the real epoll-backed reactor, the only package in the
// module reaching past golang.org/x/sys/unix for raw syscalls (stdlib's
// net/poller is not exposed for arbitrary fds the way the spec's
// AddFd/RemoveFd surface requires).
//
// Grounded on original_source/src/server/engine/event_loop_linux.cc:
// epoll_create1(0) in Build/OnCreate, EPOLL_CTL_ADD/DEL in Add/Delete,
// the write-loop retrying EAGAIN/EWOULDBLOCK and reporting a zero-byte
// write as closed in Write, and Run's epoll_wait(..., 0) with EINTR
// retried on the next tick.
type linuxReactor struct {
	epfd int
}

func newPlatformReactor() reactor {
	return &linuxReactor{epfd: -1}
}

func (r *linuxReactor) create() error {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return engineerr.New(engineerr.OsError, "epoll_create1 failed",
			types.NewDict().SetString("syscall_error", err.Error()))
	}
	r.epfd = fd
	return nil
}

func (r *linuxReactor) requireCreated() error {
	if r.epfd < 0 {
		return engineerr.New(engineerr.InvalidEpollFd, "io event loop not created", types.NewDict())
	}
	return nil
}

func (r *linuxReactor) addFd(fd int, opts AddOptions) error {
	if err := r.requireCreated(); err != nil {
		return err
	}
	var events uint32
	if opts.In {
		events |= unix.EPOLLIN
	}
	if opts.Out {
		events |= unix.EPOLLOUT
	}
	if opts.EdgeTrigger {
		events |= unix.EPOLLET
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return engineerr.New(engineerr.OsError, "epoll_ctl add failed",
			types.NewDict().SetInt64("fd", int64(fd)).SetString("syscall_error", err.Error()))
	}
	return nil
}

func (r *linuxReactor) removeFd(fd int) error {
	if err := r.requireCreated(); err != nil {
		return err
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return engineerr.New(engineerr.OsError, "epoll_ctl delete failed",
			types.NewDict().SetInt64("fd", int64(fd)).SetString("syscall_error", err.Error()))
	}
	return nil
}

func (r *linuxReactor) writeToFd(fd int, data []byte) error {
	written := 0
	for written < len(data) {
		n, err := unix.Write(fd, data[written:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				continue
			}
			return engineerr.New(engineerr.OsError, "write failed",
				types.NewDict().SetInt64("fd", int64(fd)).SetString("syscall_error", err.Error()))
		}
		if n == 0 {
			return engineerr.New(engineerr.SocketClosed, "write returned zero bytes",
				types.NewDict().SetInt64("fd", int64(fd)))
		}
		written += n
	}
	return nil
}

func (r *linuxReactor) readFromFd(fd int) ([]byte, error) {
	var out []byte
	buf := make([]byte, readChunk)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return out, nil
			}
			return out, engineerr.New(engineerr.OsError, "read failed",
				types.NewDict().SetInt64("fd", int64(fd)).SetString("syscall_error", err.Error()))
		}
		if n == 0 {
			return out, engineerr.New(engineerr.SocketClosed, "read returned zero bytes",
				types.NewDict().SetInt64("fd", int64(fd)))
		}
		out = append(out, buf[:n]...)
	}
}

func (r *linuxReactor) poll() ([]readyEvent, error) {
	if err := r.requireCreated(); err != nil {
		return nil, err
	}
	var raw [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, raw[:], 0)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, engineerr.New(engineerr.OsError, "epoll_wait failed",
			types.NewDict().SetString("syscall_error", err.Error()))
	}
	out := make([]readyEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Fd)
		switch {
		case ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0:
			out = append(out, readyEvent{fd: fd, closed: true, closeMsg: "epoll error or hangup"})
		default:
			out = append(out, readyEvent{
				fd:    fd,
				read:  ev.Events&unix.EPOLLIN != 0,
				write: ev.Events&unix.EPOLLOUT != 0,
			})
		}
	}
	return out, nil
}

func (r *linuxReactor) close() error {
	if r.epfd < 0 {
		return nil
	}
	err := unix.Close(r.epfd)
	r.epfd = -1
	if err != nil {
		return engineerr.New(engineerr.OsError, "closing epoll fd failed",
			types.NewDict().SetString("syscall_error", err.Error()))
	}
	return nil
}
