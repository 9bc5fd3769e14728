//go:build linux

package tcpserver

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/fluxorio/kestrel/pkg/ioloop"
	"github.com/fluxorio/kestrel/pkg/kernel"
	"github.com/fluxorio/kestrel/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var recorderKind = kernel.Kind{ID: 200, Name: "recorder"}

type recordingService struct {
	kernel.BaseService
	opened chan int64
}

func (r *recordingService) OnCreate(ctx *kernel.RunnerContext) error {
	return ctx.SubscribeEvent(EventSocketOpen, r.Kind().ID)
}

func (r *recordingService) OnEvent(_ *kernel.RunnerContext, name string, data types.Dict) {
	if name == EventSocketOpen {
		if id, ok := data.GetInt64("socket_id"); ok {
			r.opened <- id
		}
	}
}

func TestTcpServerPublishesSocketOpenOnAccept(t *testing.T) {
	opened := make(chan int64, 1)
	tcpSvcCh := make(chan *TcpServerService, 1)

	tcpFactory := New(0)
	wrappedFactory := func(ctx *kernel.RunnerContext) (kernel.Service, error) {
		svc, err := tcpFactory(ctx)
		if err != nil {
			return nil, err
		}
		tcpSvcCh <- svc.(*TcpServerService)
		return svc, nil
	}

	b := kernel.NewRunnerBuilder("tcp-runner", discardLogger()).
		WithService(ioloop.Kind, ioloop.New()).
		WithService(Kind, wrappedFactory).
		WithService(recorderKind, func(*kernel.RunnerContext) (kernel.Service, error) {
			return &recordingService{
				BaseService: kernel.BaseService{ServiceKind: recorderKind},
				opened:      opened,
			}, nil
		})

	tr, err := b.BuildThreadRunner()
	if err != nil {
		t.Fatalf("BuildThreadRunner: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	var tcpSvc *TcpServerService
	select {
	case tcpSvc = <-tcpSvcCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tcp server service to be created")
	}

	var addr net.Addr
	deadline := time.After(time.Second)
	for addr == nil {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for listener to bind")
		default:
		}
		addr = tcpSvc.Addr()
		time.Sleep(time.Millisecond)
	}

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case id := <-opened:
		if id <= 0 {
			t.Fatalf("unexpected socket id: %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for socket_open event")
	}
}
