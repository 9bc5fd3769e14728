package kernel

import (
	"testing"

	"github.com/fluxorio/kestrel/pkg/engineerr"
)

type stubService struct {
	BaseService
}

func newStub(id uint64, name string, deps ...uint64) *stubService {
	return &stubService{BaseService{ServiceKind: Kind{ID: id, Name: name}, Deps: deps}}
}

func TestServiceTraverserOrdersByDependency(t *testing.T) {
	a := newStub(1, "a")
	b := newStub(2, "b", 1)
	c := newStub(3, "c", 1, 2)

	ordered, err := (serviceTraverser{}).order([]Service{c, a, b})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	want := []uint64{1, 2, 3}
	for i, svc := range ordered {
		if svc.Kind().ID != want[i] {
			t.Fatalf("position %d: got kind %d, want %d", i, svc.Kind().ID, want[i])
		}
	}
}

func TestServiceTraverserDetectsCycle(t *testing.T) {
	a := newStub(1, "a", 2)
	b := newStub(2, "b", 1)

	_, err := (serviceTraverser{}).order([]Service{a, b})
	if !engineerr.Is(err, engineerr.CircularDependency) {
		t.Fatalf("expected CircularDependency, got %v", err)
	}
}

func TestServiceTraverserRejectsUnknownDependency(t *testing.T) {
	a := newStub(1, "a", 99)

	_, err := (serviceTraverser{}).order([]Service{a})
	if !engineerr.Is(err, engineerr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestServiceTraverserEmptyGraph(t *testing.T) {
	ordered, err := (serviceTraverser{}).order(nil)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if len(ordered) != 0 {
		t.Fatalf("expected empty order, got %v", ordered)
	}
}
