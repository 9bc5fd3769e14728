package kernel

import (
	"sort"
	"strconv"

	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/types"
)

// serviceTraverser computes a create order over a set of services such
// that every service's declared dependencies appear earlier, per
// spec.md §4.3. Implemented as Kahn's algorithm (stable: ties broken by
// kind id) so scenario 4's "B, A, C" example is reproducible rather than
// merely "a" valid order.
type serviceTraverser struct{}

// order returns services in dependency-respecting order, or a
// CircularDependency / ConfigInvalid error naming the offending kind ids.
func (serviceTraverser) order(services []Service) ([]Service, error) {
	byID := make(map[uint64]Service, len(services))
	for _, s := range services {
		byID[s.Kind().ID] = s
	}

	indegree := make(map[uint64]int, len(services))
	dependents := make(map[uint64][]uint64) // dep id -> ids that depend on it
	for _, s := range services {
		id := s.Kind().ID
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, dep := range s.Dependencies() {
			if _, ok := byID[dep]; !ok {
				return nil, engineerr.New(engineerr.ConfigInvalid, "service depends on an unregistered kind id",
					types.NewDict().SetInt64("kind_id", int64(id)).SetInt64("missing_dependency", int64(dep)))
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []uint64
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	var orderedIDs []uint64
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		orderedIDs = append(orderedIDs, id)

		next := append([]uint64(nil), dependents[id]...)
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(orderedIDs) != len(services) {
		var cyclic []uint64
		for id, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sort.Slice(cyclic, func(i, j int) bool { return cyclic[i] < cyclic[j] })
		fields := types.NewDict()
		for i, id := range cyclic {
			fields.SetInt64("cyclic_kind_"+strconv.Itoa(i), int64(id))
		}
		return nil, engineerr.New(engineerr.CircularDependency, "service dependency graph has a cycle", fields)
	}

	out := make([]Service, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		out = append(out, byID[id])
	}
	return out, nil
}
