// Package echoservice is a small example Service that adopts sockets
// handed off through socket_move mail and echoes back whatever bytes
// arrive on them. It stands in for the original system's
// rock-paper-scissors-lizard-spock match/battle services (excluded from
// this module's scope) to prove the reactor/actor/router wiring works
// end to end with a real, if trivial, protocol handler.
package echoservice

import (
	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/ioloop"
	"github.com/fluxorio/kestrel/pkg/kernel"
	"github.com/fluxorio/kestrel/pkg/socketrouter"
	"github.com/fluxorio/kestrel/pkg/types"
)

// Kind is this service's identity. 10000 is the first id outside the
// builtin range (spec.md §3's builtinKindCeiling reservation).
var Kind = kernel.Kind{ID: 10000, Name: "echo-service"}

// EchoService subscribes to socket_move (to receive sockets the router
// handed it) and socket_read/socket_close on its own runner's reactor,
// writing back every byte it reads until the peer closes.
//
// Grounded on pkg/core/base_service.go's OnEvent-driven subscriber
// shape; the echo behavior itself is new, written in the teacher's
// terse style rather than adapted from any single teacher file.
type EchoService struct {
	kernel.BaseService
	ioLoop *ioloop.IoEventLoopService
}

// New returns a ServiceFactory for EchoService.
func New() kernel.ServiceFactory {
	return func(*kernel.RunnerContext) (kernel.Service, error) {
		return &EchoService{
			BaseService: kernel.BaseService{ServiceKind: Kind, Deps: []uint64{ioloop.Kind.ID}},
		}, nil
	}
}

func (e *EchoService) OnCreate(ctx *kernel.RunnerContext) error {
	ioSvc, ok := ctx.GetService(ioloop.Kind.ID)
	if !ok {
		return engineerr.New(engineerr.ServiceNotFound, "io event loop service not found",
			types.NewDict().SetString("kind_name", ioloop.Kind.Name))
	}
	e.ioLoop = ioSvc.(*ioloop.IoEventLoopService)

	if err := ctx.SubscribeEvent(socketrouter.EventSocketMove, Kind.ID); err != nil {
		return err
	}
	if err := ctx.SubscribeEvent(ioloop.EventSocketRead, Kind.ID); err != nil {
		return err
	}
	return ctx.SubscribeEvent(ioloop.EventSocketClose, Kind.ID)
}

func (e *EchoService) OnDestroy(ctx *kernel.RunnerContext) {
	_ = ctx.UnsubscribeEvent(socketrouter.EventSocketMove, Kind.ID)
	_ = ctx.UnsubscribeEvent(ioloop.EventSocketRead, Kind.ID)
	_ = ctx.UnsubscribeEvent(ioloop.EventSocketClose, Kind.ID)
}

func (e *EchoService) OnEvent(ctx *kernel.RunnerContext, name string, data types.Dict) {
	switch name {
	case socketrouter.EventSocketMove:
		e.onSocketMove(ctx, data)
	case ioloop.EventSocketRead:
		e.onSocketRead(ctx, data)
	case ioloop.EventSocketClose:
		e.onSocketClose(ctx, data)
	}
}

func (e *EchoService) onSocketMove(ctx *kernel.RunnerContext, data types.Dict) {
	socketID, ok := data.GetInt64("socket_id")
	if !ok {
		return
	}
	inB, _ := data.GetBool("in")
	outB, _ := data.GetBool("out")
	edgeB, _ := data.GetBool("edge_trigger")

	if err := e.ioLoop.AddFd(int(socketID), ioloop.AddOptions{In: inB, Out: outB, EdgeTrigger: edgeB}); err != nil {
		ctx.Log().Warn("failed to add handed-off socket to reactor", "socket_id", socketID, "error", err)
	}
}

func (e *EchoService) onSocketRead(ctx *kernel.RunnerContext, data types.Dict) {
	socketID, ok := data.GetInt64("socket_id")
	if !ok {
		return
	}
	buf, err := e.ioLoop.ReadFromFd(int(socketID))
	if err != nil {
		if !engineerr.Is(err, engineerr.SocketClosed) {
			ctx.Log().Warn("read failed", "socket_id", socketID, "error", err)
		}
		return
	}
	if len(buf) == 0 {
		return
	}
	if err := e.ioLoop.WriteToFd(int(socketID), buf); err != nil {
		ctx.Log().Warn("echo write failed", "socket_id", socketID, "error", err)
	}
}

func (e *EchoService) onSocketClose(ctx *kernel.RunnerContext, data types.Dict) {
	socketID, ok := data.GetInt64("socket_id")
	if !ok {
		return
	}
	_ = e.ioLoop.RemoveFd(int(socketID))
}
