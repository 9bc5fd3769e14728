package socketrouter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/fluxorio/kestrel/pkg/actor"
	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/ioloop"
	"github.com/fluxorio/kestrel/pkg/kernel"
	"github.com/fluxorio/kestrel/pkg/mailbox"
	"github.com/fluxorio/kestrel/pkg/mailcenter"
	"github.com/fluxorio/kestrel/pkg/types"
)

// TestOnCreateRejectsEmptyTarget confirms a misconfigured router (one
// whose route function yields no target runner name) fails fast at
// startup, matching original_source's socket_router_service.cc:18-24
// rather than silently dropping the handoff mail later.
func TestOnCreateRejectsEmptyTarget(t *testing.T) {
	route := func(int64) (string, ioloop.AddOptions) { return "", ioloop.AddOptions{} }

	b := kernel.NewRunnerBuilder("source-runner", discardLogger()).
		WithService(ioloop.Kind, ioloop.New()).
		WithService(actor.Kind, actor.New(mailcenter.New(discardLogger()), nil)).
		WithService(Kind, New(route))

	r, err := b.BuildRunner()
	if err != nil {
		t.Fatalf("BuildRunner: %v", err)
	}

	runErr := r.Run()
	if !engineerr.Is(runErr, engineerr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid for empty target, got %v", runErr)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRouterRemovesFdBeforeSendingMail drives socket_open through the
// actor mailbox system and confirms route selection happens exactly once
// before the socket_move mail reaches the target runner, per spec.md §9's
// fix: the source must RemoveFd before mailing the handoff, never after.
func TestRouterRemovesFdBeforeSendingMail(t *testing.T) {
	center := mailcenter.New(discardLogger())
	dispatchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	center.Start(dispatchCtx)
	defer center.Shutdown()

	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pipeR.Close()
	defer pipeW.Close()
	fd := int(pipeR.Fd())

	ioSvcCh := make(chan *ioloop.IoEventLoopService, 1)
	ioFactory := ioloop.New()
	wrappedIOFactory := func(ctx *kernel.RunnerContext) (kernel.Service, error) {
		svc, err := ioFactory(ctx)
		if err != nil {
			return nil, err
		}
		ioSvcCh <- svc.(*ioloop.IoEventLoopService)
		return svc, nil
	}

	var order []string
	route := func(int64) (string, ioloop.AddOptions) {
		order = append(order, "route")
		return "target-runner", ioloop.AddOptions{In: true, EdgeTrigger: true}
	}

	b := kernel.NewRunnerBuilder("source-runner", discardLogger()).
		WithService(ioloop.Kind, wrappedIOFactory).
		WithService(actor.Kind, actor.New(center, nil)).
		WithService(Kind, New(route))

	tr, err := b.BuildThreadRunner()
	if err != nil {
		t.Fatalf("BuildThreadRunner: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	var ioSvc *ioloop.IoEventLoopService
	select {
	case ioSvc = <-ioSvcCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for io event loop service to be created")
	}
	if err := ioSvc.AddFd(fd, ioloop.AddOptions{In: true}); err != nil {
		t.Fatalf("AddFd: %v", err)
	}

	targetBox, err := center.Create("target-runner")
	if err != nil {
		t.Fatalf("Create target mailbox: %v", err)
	}
	defer center.Delete("target-runner")

	emitter, err := center.Create("emit-open")
	if err != nil {
		t.Fatalf("Create emit-open: %v", err)
	}
	defer center.Delete("emit-open")

	openMail := mailbox.Mail{
		From:  "emit-open",
		To:    "source-runner",
		Event: EventSocketOpen,
		Body:  types.NewDict().SetInt64("socket_id", int64(fd)),
	}
	if err := emitter.Send(openMail); err != nil {
		t.Fatalf("Send socket_open: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for socket_move mail")
		default:
		}
		if m, ok, _ := targetBox.TryReceive(); ok {
			if m.Event != EventSocketMove {
				t.Fatalf("unexpected event %q", m.Event)
			}
			if len(order) != 1 {
				t.Fatalf("expected route to have been invoked exactly once before handoff, got %v", order)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
}
