package mailbox

import (
	"testing"

	"github.com/fluxorio/kestrel/pkg/types"
)

func TestMailCloneDeepCopiesBody(t *testing.T) {
	body := types.NewDict().SetString("k", "v")
	m := Mail{From: "a", To: "b", Event: "ping", Body: body}
	clone := m.Clone()

	clone.Body.SetString("k", "changed")
	if got, _ := body.GetString("k"); got != "v" {
		t.Fatalf("original mutated through clone: got %q", got)
	}
}

func TestMailBoxSendDeliverRoundTrip(t *testing.T) {
	mb := New("runner-a")
	m := Mail{From: "runner-b", To: "runner-a", Event: "ping", Body: types.NewDict()}

	if err := mb.deliver(m); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	got, ok, err := mb.TryReceive()
	if err != nil || !ok {
		t.Fatalf("TryReceive: err=%v ok=%v", err, ok)
	}
	if got.From != "runner-b" || got.Event != "ping" {
		t.Fatalf("unexpected mail: %+v", got)
	}
}

func TestMailBoxOutboxDrain(t *testing.T) {
	mb := New("runner-a")
	m := Mail{From: "runner-a", To: "runner-b", Event: "ping", Body: types.NewDict()}
	if err := mb.Send(m); err != nil {
		t.Fatalf("Send: %v", err)
	}
	v, ok, err := mb.outbox().TryReceive()
	if err != nil || !ok {
		t.Fatalf("outbox drain: err=%v ok=%v", err, ok)
	}
	if v.(Mail).To != "runner-b" {
		t.Fatalf("unexpected mail: %+v", v)
	}
}
