package kernel

import "github.com/fluxorio/kestrel/pkg/types"

// Service is a lifecycle-managed component hosted by exactly one Runner
// for its entire lifetime. The capability set mirrors spec.md §3:
// OnCreate returns an error (fatal for the runner if non-nil), OnUpdate
// and OnEvent must not block indefinitely, and OnDestroy must not fail.
//
// Grounded on pkg/core/base_verticle.go's Start/Stop template-method
// shape, generalized from a single Start/Stop pair to the spec's four
// hooks plus a per-kind dependency declaration.
type Service interface {
	// Kind returns this service's stable (id, name) identity.
	Kind() Kind

	// Dependencies returns the kind ids that must complete OnCreate
	// before this service's own OnCreate runs.
	Dependencies() []uint64

	// OnCreate runs once, on the runner's thread, before any OnUpdate or
	// event dispatch. It may perform I/O and subscribe to events.
	OnCreate(ctx *RunnerContext) error

	// OnUpdate is called once per tick. Must not block indefinitely.
	OnUpdate(ctx *RunnerContext)

	// OnDestroy releases resources. Must not fail.
	OnDestroy(ctx *RunnerContext)

	// OnEvent handles an in-runner event this service subscribed to.
	OnEvent(ctx *RunnerContext, name string, data types.Dict)
}

// ServiceFactory produces one Service given the runner context it will
// live in. RunnerBuilder accumulates these; Runner.Run invokes them once
// each, in registration order, and ServiceTraverser then orders the
// resulting services by declared dependencies for OnCreate.
type ServiceFactory func(ctx *RunnerContext) (Service, error)

// BaseService provides no-op defaults for the optional hooks so concrete
// services only need to implement the methods they care about, the way
// pkg/core/base_verticle.go's BaseVerticle supplies default doStart/doStop
// hooks for subclasses that only override one side of the lifecycle.
type BaseService struct {
	ServiceKind Kind
	Deps        []uint64
}

func (b *BaseService) Kind() Kind                { return b.ServiceKind }
func (b *BaseService) Dependencies() []uint64     { return b.Deps }
func (b *BaseService) OnCreate(*RunnerContext) error { return nil }
func (b *BaseService) OnUpdate(*RunnerContext)        {}
func (b *BaseService) OnDestroy(*RunnerContext)       {}
func (b *BaseService) OnEvent(*RunnerContext, string, types.Dict) {}
