// Package ioloop implements IoEventLoopService, the per-runner epoll
// reactor, per spec.md §4.5. Platform-specific syscalls live in
// ioloop_linux.go / ioloop_other.go behind a shared interface so the rest
// of the module never branches on GOOS.
package ioloop

import (
	"github.com/fluxorio/kestrel/pkg/kernel"
	"github.com/fluxorio/kestrel/pkg/types"
)

// Kind is the builtin identity of IoEventLoopService.
var Kind = kernel.KindIoEventLoop

// Event names published on the owning runner's in-runner bus, per
// spec.md §4.5 and the payload shapes in §8.
const (
	EventSocketRead  = "socket_read"
	EventSocketWrite = "socket_write"
	EventSocketClose = "socket_close"
)

// AddOptions controls how AddFd registers a descriptor with epoll.
type AddOptions struct {
	In          bool
	Out         bool
	EdgeTrigger bool
}

// reactor is the platform-specific epoll surface IoEventLoopService
// drives. ioloop_linux.go provides the real implementation;
// ioloop_other.go provides a stub that fails every call except close with
// OsError, so
// the package still builds (and is still useful as a no-op placeholder)
// on non-Linux platforms.
type reactor interface {
	create() error
	addFd(fd int, opts AddOptions) error
	removeFd(fd int) error
	writeToFd(fd int, data []byte) error
	readFromFd(fd int) ([]byte, error)
	// poll returns ready events for this tick; zero timeout. EINTR yields
	// no events and no error, so the wait is retried on the next tick.
	poll() ([]readyEvent, error)
	close() error
}

type readyEvent struct {
	fd      int
	read    bool
	write   bool
	closed  bool
	closeMsg string
}

// IoEventLoopService wraps one epoll descriptor and republishes ready
// events as in-runner events named per spec.md §4.5.
//
// Grounded on original_source/src/server/engine/event_loop_linux.cc's
// EventLoopLinux (epoll_create1 in Build, Add/Delete/Write mapping
// directly to AddFd/RemoveFd/WriteToFd, Run's TryReceive-then-epoll_wait
// loop), generalized so platform syscalls sit behind the reactor
// interface instead of being called directly from the service.
type IoEventLoopService struct {
	kernel.BaseService
	r reactor
}

// New returns a ServiceFactory for IoEventLoopService using the
// platform's real reactor (epoll on Linux, a failing stub elsewhere).
func New() kernel.ServiceFactory {
	return func(*kernel.RunnerContext) (kernel.Service, error) {
		return &IoEventLoopService{
			BaseService: kernel.BaseService{ServiceKind: Kind},
			r:           newPlatformReactor(),
		}, nil
	}
}

func (s *IoEventLoopService) OnCreate(*kernel.RunnerContext) error {
	return s.r.create()
}

func (s *IoEventLoopService) OnDestroy(*kernel.RunnerContext) {
	_ = s.r.close()
}

// AddFd registers fd with epoll using the requested trigger flags.
func (s *IoEventLoopService) AddFd(fd int, opts AddOptions) error {
	return s.r.addFd(fd, opts)
}

// RemoveFd deregisters fd. The descriptor itself is left open; closing it
// is the caller's responsibility (spec.md §9 scenario on AddFd/RemoveFd
// symmetry).
func (s *IoEventLoopService) RemoveFd(fd int) error {
	return s.r.removeFd(fd)
}

// WriteToFd writes the full buffer, retrying on EAGAIN/EWOULDBLOCK, and
// reports SocketClosed on a zero-byte write.
func (s *IoEventLoopService) WriteToFd(fd int, data []byte) error {
	return s.r.writeToFd(fd, data)
}

// ReadFromFd reads until EAGAIN/EWOULDBLOCK and returns the accumulated
// buffer, reporting SocketClosed on a zero-byte read.
func (s *IoEventLoopService) ReadFromFd(fd int) ([]byte, error) {
	return s.r.readFromFd(fd)
}

// OnUpdate polls epoll with a zero timeout and republishes ready events.
// A poll failure is always an OsError (spec.md §7), which propagates to
// the runner and aborts it rather than being merely logged.
func (s *IoEventLoopService) OnUpdate(ctx *kernel.RunnerContext) {
	events, err := s.r.poll()
	if err != nil {
		ctx.Log().Error("epoll poll failed", "error", err)
		ctx.Abort(err)
		return
	}
	for _, ev := range events {
		switch {
		case ev.closed:
			data := types.NewDict().SetInt64("socket_id", int64(ev.fd))
			if ev.closeMsg != "" {
				data = data.SetString("reason", ev.closeMsg)
			}
			_ = ctx.InvokeEvent(EventSocketClose, data)
		default:
			if ev.read {
				_ = ctx.InvokeEvent(EventSocketRead, types.NewDict().SetInt64("socket_id", int64(ev.fd)))
			}
			if ev.write {
				_ = ctx.InvokeEvent(EventSocketWrite, types.NewDict().SetInt64("socket_id", int64(ev.fd)))
			}
		}
	}
}
