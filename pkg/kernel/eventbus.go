package kernel

import (
	"sort"
	"strconv"

	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/types"
)

// eventBus is the in-runner synchronous publish/subscribe table. It is
// thread-confined to the owning runner (spec.md §5), so it uses a plain
// map with no locking — generalized from pkg/core/eventbus_impl.go's
// mutex-guarded, address-keyed consumer list down to the simpler
// name->set-of-kind-id table the spec calls for, since in-runner dispatch
// is synchronous and single-threaded rather than cross-goroutine.
type eventBus struct {
	subs map[string]map[uint64]struct{}
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[string]map[uint64]struct{})}
}

func (b *eventBus) subscribe(name string, kind uint64) error {
	set, ok := b.subs[name]
	if !ok {
		set = make(map[uint64]struct{})
		b.subs[name] = set
	}
	if _, already := set[kind]; already {
		return engineerr.New(engineerr.AlreadySubscribed, "kind already subscribed to event",
			types.NewDict().SetString("event", name).SetInt64("kind_id", int64(kind)))
	}
	set[kind] = struct{}{}
	return nil
}

func (b *eventBus) unsubscribe(name string, kind uint64) error {
	set, ok := b.subs[name]
	if !ok {
		return engineerr.New(engineerr.NotSubscribed, "event has no subscribers",
			types.NewDict().SetString("event", name))
	}
	if _, ok := set[kind]; !ok {
		return engineerr.New(engineerr.NotSubscribed, "kind not subscribed to event",
			types.NewDict().SetString("event", name).SetInt64("kind_id", int64(kind)))
	}
	delete(set, kind)
	if len(set) == 0 {
		delete(b.subs, name)
	}
	return nil
}

// invoke resolves each subscriber of name against services and calls
// OnEvent on every one that still resolves. If a subscriber no longer
// resolves, invocation continues through the rest and an aggregate error
// naming the missing kinds is returned afterward (spec.md §4.1).
func (b *eventBus) invoke(ctx *RunnerContext, services *ServiceMap, name string, data types.Dict) error {
	set, ok := b.subs[name]
	if !ok || len(set) == 0 {
		return engineerr.New(engineerr.ServiceNotFound, "no subscribers for event",
			types.NewDict().SetString("event", name))
	}

	// Iteration order over a kind-set is unspecified per spec.md §5; sort
	// for reproducible test behavior without implying an ordering
	// guarantee callers may rely on.
	kinds := make([]uint64, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var missing []uint64
	for _, kind := range kinds {
		svc, ok := services.Get(kind)
		if !ok {
			missing = append(missing, kind)
			continue
		}
		svc.OnEvent(ctx, name, data)
	}

	if len(missing) > 0 {
		fields := types.NewDict().SetString("event", name)
		for i, kind := range missing {
			fields.SetInt64("missing_kind_"+strconv.Itoa(i), int64(kind))
		}
		return engineerr.New(engineerr.ServiceNotFound, "some subscribers no longer resolve", fields)
	}
	return nil
}
