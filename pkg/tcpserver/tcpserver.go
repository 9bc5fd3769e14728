// Package tcpserver implements TcpServerService: accepts TCP
// connections and hands each raw descriptor to the runner's
// IoEventLoopService, per spec.md §4.6. This is the one place the
// module calls net.Listen; once a connection is accepted its socket is
// driven entirely through the epoll reactor, never through net.Conn.
package tcpserver

import (
	"net"
	"strconv"
	"sync/atomic"

	"github.com/fluxorio/kestrel/pkg/concurrency"
	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/ioloop"
	"github.com/fluxorio/kestrel/pkg/kernel"
	"github.com/fluxorio/kestrel/pkg/types"
)

// Kind is the builtin identity of TcpServerService.
var Kind = kernel.KindTcpServer

// EventSocketOpen is published once an accepted descriptor has been
// registered with the reactor.
const EventSocketOpen = "socket_open"

// pendingCapacity bounds the accept-to-OnUpdate hand-off queue. This is
// an internal queueing concern distinct from the cross-runner actor
// mailbox spec.md §3 requires to be unbounded; shedding connections when
// OnUpdate can't keep draining pending is a reasonable accept-side
// backpressure point.
const pendingCapacity = 1024

// TcpServerService listens on a configured port and, for every accepted
// connection, extracts its raw file descriptor and registers it with
// IoEventLoopService before publishing socket_open. It never reads or
// writes the connection itself — that is entirely the reactor's job from
// this point on (spec.md §4.6: "closed out of the core; its contract to
// the core is: produces socket_open events carrying a valid socket id").
//
// Grounded on the accept-loop shape of the teacher's tcp server
// (net.Listen, one goroutine per accept, extract the raw fd via
// SyscallConn, hand off through a Mailbox rather than touching shared
// state directly), trimmed of its worker-pool machinery; the one
// accept-side limit left is the bounded pending queue (pendingCapacity).
// Accepted descriptors are queued onto
// pending and drained from OnUpdate, so AddFd/InvokeEvent always run on
// the runner's own thread, matching ServiceMap/RunnerContext's
// thread-confined, no-locking invariant (spec.md §5) even though accept()
// blocks on its own goroutine.
type TcpServerService struct {
	kernel.BaseService
	port    int
	ln      *net.TCPListener
	ioLoop  *ioloop.IoEventLoopService
	pending concurrency.Mailbox
	stopped chan struct{}
	addr    atomic.Value // net.Addr, set once OnCreate has bound the listener
}

// New returns a ServiceFactory for TcpServerService listening on port.
func New(port int) kernel.ServiceFactory {
	return func(*kernel.RunnerContext) (kernel.Service, error) {
		return &TcpServerService{
			BaseService: kernel.BaseService{ServiceKind: Kind, Deps: []uint64{ioloop.Kind.ID}},
			port:        port,
			pending:     concurrency.NewBoundedMailbox(pendingCapacity),
			stopped:     make(chan struct{}),
		}, nil
	}
}

func (s *TcpServerService) OnCreate(ctx *kernel.RunnerContext) error {
	ioSvc, ok := ctx.GetService(ioloop.Kind.ID)
	if !ok {
		return engineerr.New(engineerr.ServiceNotFound, "io event loop service not found",
			types.NewDict().SetString("kind_name", ioloop.Kind.Name))
	}
	s.ioLoop = ioSvc.(*ioloop.IoEventLoopService)

	addr, err := net.ResolveTCPAddr("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return engineerr.New(engineerr.ConfigInvalid, "invalid tcp port",
			types.NewDict().SetInt64("port", int64(s.port)).SetString("error", err.Error()))
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return engineerr.New(engineerr.OsError, "listen failed",
			types.NewDict().SetInt64("port", int64(s.port)).SetString("error", err.Error()))
	}
	s.ln = ln
	s.addr.Store(ln.Addr())

	go s.acceptLoop(ctx)
	return nil
}

// Addr returns the listener's bound address once OnCreate has run,
// useful when New was called with port 0 to let the OS pick a free port
// (e.g. in tests).
func (s *TcpServerService) Addr() net.Addr {
	a, _ := s.addr.Load().(net.Addr)
	return a
}

func (s *TcpServerService) OnDestroy(*kernel.RunnerContext) {
	close(s.stopped)
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.pending.Close()
}

// OnUpdate drains accepted descriptors queued by acceptLoop, registering
// each with the reactor and publishing socket_open from the runner's own
// thread.
func (s *TcpServerService) OnUpdate(ctx *kernel.RunnerContext) {
	for {
		v, ok, err := s.pending.TryReceive()
		if err != nil || !ok {
			return
		}
		fd := v.(int)
		if err := s.ioLoop.AddFd(fd, ioloop.AddOptions{In: true, EdgeTrigger: true}); err != nil {
			ctx.Log().Warn("failed to register accepted fd with reactor", "fd", fd, "error", err)
			continue
		}
		if err := ctx.InvokeEvent(EventSocketOpen, types.NewDict().SetInt64("socket_id", int64(fd))); err != nil {
			ctx.Log().Warn("socket_open invocation failed", "fd", fd, "error", err)
		}
	}
}

func (s *TcpServerService) acceptLoop(ctx *kernel.RunnerContext) {
	for {
		conn, err := s.ln.AcceptTCP()
		if err != nil {
			select {
			case <-s.stopped:
				return
			default:
				ctx.Log().Warn("accept failed", "error", err)
				return
			}
		}

		fd, err := extractRawFd(conn)
		if err != nil {
			ctx.Log().Warn("failed to extract raw fd", "error", err)
			_ = conn.Close()
			continue
		}

		if err := s.pending.Send(fd); err != nil {
			ctx.Log().Warn("failed to queue accepted fd", "fd", fd, "error", err)
			_ = conn.Close()
		}
	}
}
