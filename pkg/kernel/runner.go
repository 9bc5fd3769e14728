package kernel

import (
	"log/slog"

	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/types"
)

// StopSignal is polled by Runner.Run once per tick, alongside the runner's
// own SignalService (if one is registered), to decide whether to leave the
// main loop.
// Returning true ends the loop on the next tick boundary.
type StopSignal func() bool

// Runner hosts a fixed set of services for its entire lifetime: created in
// dependency order, updated every tick in insertion order, destroyed in
// reverse creation order (spec.md §4.1). A Runner never outlives one
// Run call; RunnerBuilder produces a fresh one each time.
//
// Grounded on pkg/core/vertx.go's deploy/run/undeploy sequencing,
// generalized from verticle deployment-by-address to kind-ordered
// service creation driven by ServiceTraverser.
type Runner struct {
	name       string
	factories  []ServiceFactory
	logger     *slog.Logger
	stopSignal StopSignal
}

func newRunner(name string, factories []ServiceFactory, logger *slog.Logger, stop StopSignal) *Runner {
	return &Runner{name: name, factories: factories, logger: logger, stopSignal: stop}
}

// Name returns this runner's name (also its mailbox name, spec.md §4.4).
func (r *Runner) Name() string { return r.name }

// Run executes the full create -> main-loop -> destroy sequence
// synchronously on the calling goroutine. It returns engineerr.Interrupted
// when the loop ends because stopSignal reported true or a registered
// SignalService reports IsInterrupted; the error a service passed to
// RunnerContext.Abort when the loop ends that way; or the creation error
// when service creation fails. It never returns nil.
func (r *Runner) Run() error {
	services := newServiceMap()
	bus := newEventBus()
	ctx := newRunnerContext(r.name, services, bus, r.logger)

	created, err := r.createServices(ctx, services)
	if err != nil {
		r.destroyServices(ctx, created)
		return err
	}

	for {
		if r.stopSignal != nil && r.stopSignal() {
			break
		}
		if sig, ok := services.Get(KindSignal.ID); ok {
			if s, ok := sig.(interface{ IsInterrupted() bool }); ok && s.IsInterrupted() {
				break
			}
		}
		for _, id := range services.InsertionOrder() {
			svc, ok := services.Get(id)
			if !ok {
				continue
			}
			svc.OnUpdate(ctx)
		}
		if abortErr, ok := ctx.abortRequested(); ok {
			r.destroyServices(ctx, services.InsertionOrder())
			return abortErr
		}
	}

	r.destroyServices(ctx, services.InsertionOrder())
	return engineerr.New(engineerr.Interrupted, "runner stopped", types.NewDict().SetString("runner", r.name))
}

// createServices instantiates every factory, orders the results via
// serviceTraverser, registers them into services in that order (so
// InsertionOrder doubles as creation order), and runs OnCreate on each in
// turn. It returns the kind ids it managed to create, even on error, so
// the caller can destroy exactly what was created.
func (r *Runner) createServices(ctx *RunnerContext, services *ServiceMap) ([]uint64, error) {
	instances := make([]Service, 0, len(r.factories))
	for _, factory := range r.factories {
		svc, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		instances = append(instances, svc)
	}

	ordered, err := (serviceTraverser{}).order(instances)
	if err != nil {
		return nil, err
	}

	created := make([]uint64, 0, len(ordered))
	for _, svc := range ordered {
		if err := services.register(svc); err != nil {
			return created, err
		}
		if err := svc.OnCreate(ctx); err != nil {
			return created, err
		}
		created = append(created, svc.Kind().ID)
	}
	return created, nil
}

// destroyServices tears down the given kind ids in reverse order.
func (r *Runner) destroyServices(ctx *RunnerContext, createdOrder []uint64) {
	for i := len(createdOrder) - 1; i >= 0; i-- {
		svc, ok := ctx.services.Get(createdOrder[i])
		if !ok {
			continue
		}
		svc.OnDestroy(ctx)
	}
	ctx.services.clear()
}
