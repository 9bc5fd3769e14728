package kernel

import (
	"log/slog"

	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/types"
)

// RunnerBuilder accumulates ServiceFactory entries for one runner-to-be.
// It does not itself validate the dependency graph — that happens inside
// Runner.Run via serviceTraverser, once the factories have actually run
// and produced concrete Kind values (a factory may choose its kind at
// construction time in principle, though builtin kinds never do).
//
// Grounded on pkg/core/vertx.go's builder-style deployment registration,
// generalized from verticle-factory-by-address to kind-checked
// ServiceFactory accumulation with upfront duplicate-kind rejection.
type RunnerBuilder struct {
	name       string
	factories  []ServiceFactory
	kindSeen   map[uint64]string
	logger     *slog.Logger
	stopSignal StopSignal
	err        error
}

// NewRunnerBuilder starts a builder for a runner named name. name also
// becomes the runner's mailbox name in the cross-runner actor system
// (spec.md §4.4), so it must satisfy the same naming rules MailCenter
// enforces. The builder does not check it: the check happens when an
// ActorService registers the mailbox in its OnCreate, inside Run.
func NewRunnerBuilder(name string, logger *slog.Logger) *RunnerBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunnerBuilder{
		name:     name,
		kindSeen: make(map[uint64]string),
		logger:   logger,
	}
}

// WithService registers kind's factory. Adding two factories for the same
// kind id is a configuration error surfaced at build time.
func (b *RunnerBuilder) WithService(kind Kind, factory ServiceFactory) *RunnerBuilder {
	if b.err != nil {
		return b
	}
	if existing, ok := b.kindSeen[kind.ID]; ok {
		b.err = engineerr.New(engineerr.ConfigInvalid, "duplicate service kind registered on runner",
			types.NewDict().SetString("runner", b.name).SetInt64("kind_id", int64(kind.ID)).SetString("kind_name", existing))
		return b
	}
	b.kindSeen[kind.ID] = kind.Name
	b.factories = append(b.factories, factory)
	return b
}

// WithStopSignal installs the predicate Runner.Run polls each tick to
// decide whether to leave the main loop, in addition to any builtin
// SignalService a caller also registered as a service.
func (b *RunnerBuilder) WithStopSignal(stop StopSignal) *RunnerBuilder {
	b.stopSignal = stop
	return b
}

// BuildRunner finalizes a foreground Runner: Run() executes on the
// caller's own goroutine.
func (b *RunnerBuilder) BuildRunner() (*Runner, error) {
	if b.err != nil {
		return nil, b.err
	}
	return newRunner(b.name, b.factories, b.logger, b.stopSignal), nil
}

// BuildThreadRunner finalizes a ThreadRunner: Run() executes on a
// dedicated goroutine started by ThreadRunner.Start, per spec.md §4.2.
func (b *RunnerBuilder) BuildThreadRunner() (*ThreadRunner, error) {
	if b.err != nil {
		return nil, b.err
	}
	r := newRunner(b.name, b.factories, b.logger, nil)
	return newThreadRunner(r, b.stopSignal), nil
}
