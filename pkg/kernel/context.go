package kernel

import (
	"log/slog"

	"github.com/fluxorio/kestrel/pkg/types"
)

// RunnerContext is the non-owning capability handle a Service uses to
// reach its peers and the in-runner event bus. It must not be retained
// past its Runner's destruction (spec.md §4.1).
//
// Grounded on pkg/core/context.go's FluxorContext (id/config/runtime/
// stdCtx fields, a Log() convenience method), generalized from a single
// event-bus-by-address model to the spec's kind-indexed GetService/
// Subscribe/Invoke capability set.
type RunnerContext struct {
	runnerName string
	services   *ServiceMap
	bus        *eventBus
	logger     *slog.Logger
	abortErr   error
}

func newRunnerContext(runnerName string, services *ServiceMap, bus *eventBus, logger *slog.Logger) *RunnerContext {
	return &RunnerContext{
		runnerName: runnerName,
		services:   services,
		bus:        bus,
		logger:     logger.With("runner", runnerName),
	}
}

// RunnerName returns the name of the owning runner (also this runner's
// mailbox name, per spec.md §4.4).
func (c *RunnerContext) RunnerName() string { return c.runnerName }

// Log returns a logger scoped to this runner.
func (c *RunnerContext) Log() *slog.Logger { return c.logger }

// GetService resolves a peer service by kind id.
func (c *RunnerContext) GetService(id uint64) (Service, bool) {
	return c.services.Get(id)
}

// HasService reports whether a service with the given kind id exists on
// this runner.
func (c *RunnerContext) HasService(id uint64) bool {
	return c.services.Has(id)
}

// SubscribeEvent adds kind to the subscriber set for name.
func (c *RunnerContext) SubscribeEvent(name string, kind uint64) error {
	return c.bus.subscribe(name, kind)
}

// UnsubscribeEvent removes kind from the subscriber set for name.
func (c *RunnerContext) UnsubscribeEvent(name string, kind uint64) error {
	return c.bus.unsubscribe(name, kind)
}

// InvokeEvent dispatches name synchronously to every resolvable
// subscriber, on the calling (runner) goroutine.
func (c *RunnerContext) InvokeEvent(name string, data types.Dict) error {
	return c.bus.invoke(c, c.services, name, data)
}

// Abort requests that the owning Runner leave its main loop and return
// err from Run, once the current tick's services have all had a chance
// to run (spec.md §7: some error kinds, e.g. OsError from the reactor,
// "propagate to runner and abort it" rather than merely being logged).
// The first call wins; later calls in the same tick are no-ops. Safe to
// call only from a service's own OnCreate/OnUpdate/OnEvent, which always
// run on the runner's own goroutine — the same goroutine that later
// checks it, so no locking is needed.
func (c *RunnerContext) Abort(err error) {
	if err == nil || c.abortErr != nil {
		return
	}
	c.abortErr = err
}

// abortRequested reports the error passed to Abort, if any, and whether
// one was requested at all.
func (c *RunnerContext) abortRequested() (error, bool) {
	return c.abortErr, c.abortErr != nil
}
