package kernel

import (
	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/types"
)

// ServiceMap keeps the id->service and name->id mappings in lockstep.
// Thread-confined to the owning Runner's thread; no internal locking,
// matching spec.md §5 ("ServiceMap... thread-confined to the runner that
// owns them; no locking").
//
// Grounded on pkg/core/vertx.go's deployments map, generalized from a
// single id->deployment map to the spec's two-map ServiceMap invariant.
type ServiceMap struct {
	byID     map[uint64]Service
	nameToID map[string]uint64
	// order records insertion order, used for OnUpdate's "insertion
	// order" iteration guarantee (spec.md §4.1 step 2).
	order []uint64
}

func newServiceMap() *ServiceMap {
	return &ServiceMap{
		byID:     make(map[uint64]Service),
		nameToID: make(map[string]uint64),
	}
}

// register inserts svc, rejecting a kind id collision with a different
// name (spec.md §3: "two kinds with the same id but different name are a
// programming error") or a duplicate id outright.
func (m *ServiceMap) register(svc Service) error {
	k := svc.Kind()
	if existing, ok := m.nameToID[k.Name]; ok && existing != k.ID {
		return engineerr.New(engineerr.ConfigInvalid, "service name maps to a different kind id",
			types.NewDict().SetString("name", k.Name).SetInt64("existing_id", int64(existing)).SetInt64("new_id", int64(k.ID)))
	}
	if _, ok := m.byID[k.ID]; ok {
		return engineerr.New(engineerr.ConfigInvalid, "duplicate service kind id",
			types.NewDict().SetInt64("id", int64(k.ID)))
	}
	m.byID[k.ID] = svc
	m.nameToID[k.Name] = k.ID
	m.order = append(m.order, k.ID)
	return nil
}

// Get resolves a service by kind id.
func (m *ServiceMap) Get(id uint64) (Service, bool) {
	s, ok := m.byID[id]
	return s, ok
}

// Has reports whether a service with the given kind id is registered.
func (m *ServiceMap) Has(id uint64) bool {
	_, ok := m.byID[id]
	return ok
}

// InsertionOrder returns kind ids in the order services were registered.
func (m *ServiceMap) InsertionOrder() []uint64 {
	out := make([]uint64, len(m.order))
	copy(out, m.order)
	return out
}

// clear empties both maps together, per spec.md §3's ServiceMap invariant.
func (m *ServiceMap) clear() {
	m.byID = make(map[uint64]Service)
	m.nameToID = make(map[string]uint64)
	m.order = nil
}

func (m *ServiceMap) len() int { return len(m.order) }
