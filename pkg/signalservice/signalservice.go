// Package signalservice implements SignalService: SIGINT -> a process
// shutdown flag every runner's main loop can poll, per spec.md §4.6.
package signalservice

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/fluxorio/kestrel/pkg/kernel"
)

// Kind is the builtin identity of SignalService.
var Kind = kernel.KindSignal

// SignalService installs a SIGINT handler on OnCreate and exposes
// IsInterrupted for Runner.Run's stop-signal predicate. Only one
// SignalService should be registered process-wide; registering it on more
// than one runner just means each gets its own independent flag.
//
// Grounded on cmd/gateway/main.go's signal.Notify(os.Interrupt,
// syscall.SIGTERM) + context-cancellation shutdown pattern, adapted from
// a one-shot cancellation into a polled atomic flag, since
// RunnerContext.OnUpdate is a cooperative tick loop rather than a
// context-aware blocking call.
type SignalService struct {
	kernel.BaseService
	interrupted int32
	ch          chan os.Signal
}

// New returns a ServiceFactory for SignalService.
func New() kernel.ServiceFactory {
	return func(*kernel.RunnerContext) (kernel.Service, error) {
		return &SignalService{BaseService: kernel.BaseService{ServiceKind: Kind}}, nil
	}
}

func (s *SignalService) OnCreate(*kernel.RunnerContext) error {
	s.ch = make(chan os.Signal, 1)
	signal.Notify(s.ch, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-s.ch; ok {
			atomic.StoreInt32(&s.interrupted, 1)
		}
	}()
	return nil
}

func (s *SignalService) OnDestroy(*kernel.RunnerContext) {
	signal.Stop(s.ch)
	close(s.ch)
}

// IsInterrupted reports whether SIGINT/SIGTERM has been received. Used
// directly as a kernel.StopSignal: WithStopSignal(svc.IsInterrupted).
func (s *SignalService) IsInterrupted() bool {
	return atomic.LoadInt32(&s.interrupted) == 1
}
