// Package actor hosts the per-runner ActorService: the Service that owns
// a runner's MailBox and bridges cross-runner mail into in-runner
// events, per spec.md §4.4.
package actor

import (
	"context"
	"sync/atomic"

	"github.com/fluxorio/kestrel/pkg/kernel"
	"github.com/fluxorio/kestrel/pkg/mailbox"
	"github.com/fluxorio/kestrel/pkg/mailcenter"
	"github.com/fluxorio/kestrel/pkg/types"
)

// Kind is the builtin identity of ActorService.
var Kind = kernel.KindActor

// EventShutdown is the reserved mail event every ActorService treats as a
// local interrupt: on receipt it flips a flag IsShutdownRequested reports,
// instead of being forwarded to InvokeEvent like an ordinary event. This
// is the broadcast-shutdown mechanism spec.md §6 requires ("every
// ActorService treats [a shutdown mail] as a local interrupt"), since a
// ThreadRunner otherwise has no way to observe SIGINT directly.
const EventShutdown = "shutdown"

// Tracer optionally wraps SendMail/drain with a tracing span, so the
// telemetry package can instrument mail flow without this package
// importing OpenTelemetry directly (spec's core engine carries no
// observability dependency itself; telemetry wires in from outside).
type Tracer interface {
	StartMailSpan(ctx context.Context, m mailbox.Mail) (context.Context, func())
}

type noopTracer struct{}

func (noopTracer) StartMailSpan(ctx context.Context, _ mailbox.Mail) (context.Context, func()) {
	return ctx, func() {}
}

// ActorService registers a MailBox under the owning runner's name,
// drains inbound mail each tick into InvokeEvent calls, and exposes
// SendMail for other services on the same runner to reach peers by
// runner name.
//
// Grounded on pkg/core/base_service.go's per-verticle lifecycle shape,
// generalized to own a single mailbox.MailBox resource for the runner's
// entire life and to translate Mail.Event into RunnerContext.InvokeEvent
// rather than dispatching to an address-keyed consumer list.
type ActorService struct {
	kernel.BaseService
	center      *mailcenter.MailCenter
	tracer      Tracer
	box         *mailbox.MailBox
	shutdownReq int32
}

// New constructs an ActorService factory bound to center. tracer may be
// nil, in which case mail flow is untraced.
func New(center *mailcenter.MailCenter, tracer Tracer) kernel.ServiceFactory {
	if tracer == nil {
		tracer = noopTracer{}
	}
	return func(*kernel.RunnerContext) (kernel.Service, error) {
		return &ActorService{
			BaseService: kernel.BaseService{ServiceKind: Kind},
			center:      center,
			tracer:      tracer,
		}, nil
	}
}

// OnCreate registers this runner's MailBox with the MailCenter.
func (a *ActorService) OnCreate(ctx *kernel.RunnerContext) error {
	box, err := a.center.Create(ctx.RunnerName())
	if err != nil {
		return err
	}
	a.box = box
	return nil
}

// OnDestroy unregisters the MailBox.
func (a *ActorService) OnDestroy(ctx *kernel.RunnerContext) {
	_ = a.center.Delete(ctx.RunnerName())
}

// OnUpdate drains every piece of mail currently queued for this runner
// and turns each into a synchronous InvokeEvent call on the runner's
// own event bus, so ordinary in-runner services never need to know mail
// arrived over the cross-runner system at all.
func (a *ActorService) OnUpdate(ctx *kernel.RunnerContext) {
	for {
		m, ok, err := a.box.TryReceive()
		if err != nil || !ok {
			return
		}
		if m.Event == EventShutdown {
			atomic.StoreInt32(&a.shutdownReq, 1)
			continue
		}
		spanCtx, end := a.tracer.StartMailSpan(context.Background(), m)
		_ = spanCtx
		if err := ctx.InvokeEvent(m.Event, m.Body); err != nil {
			ctx.Log().Warn("mail event invocation failed", "event", m.Event, "from", m.From, "error", err)
		}
		end()
	}
}

// IsShutdownRequested reports whether a shutdown mail has been received.
// Pass it directly as a kernel.StopSignal: WithStopSignal(svc.IsShutdownRequested).
func (a *ActorService) IsShutdownRequested() bool {
	return atomic.LoadInt32(&a.shutdownReq) == 1
}

// SendMail enqueues m for delivery by the MailCenter dispatcher. Never
// blocks on the recipient; m.From is forced to this runner's name.
func (a *ActorService) SendMail(ctx *kernel.RunnerContext, to, event string, body types.Dict) error {
	m := mailbox.Mail{From: ctx.RunnerName(), To: to, Event: event, Body: body}
	spanCtx, end := a.tracer.StartMailSpan(context.Background(), m)
	_ = spanCtx
	defer end()
	return a.box.Send(m)
}
