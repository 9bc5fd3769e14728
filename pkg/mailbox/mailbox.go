package mailbox

import (
	"context"

	"github.com/fluxorio/kestrel/pkg/concurrency"
)

// MailBox is one runner's endpoint in the cross-runner actor system: an
// outgoing half the owning runner sends through, and an incoming half the
// MailCenter dispatcher delivers into. Both halves are backed by an
// unbounded queue, so a stalled peer can never stall the sender or the
// dispatcher (spec.md §4.4 Non-goals: "no backpressure beyond an
// unbounded mailbox channel").
//
// Grounded on pkg/concurrency's Mailbox abstraction (hide channel/queue
// operations behind Send/Receive/TryReceive), instantiated twice per
// MailBox: once for mail flowing toward the center, once for mail
// flowing back out to the runner.
type MailBox struct {
	name     string
	toCenter concurrency.Mailbox
	toRunner concurrency.Mailbox
}

// New creates a MailBox named name (the owning runner's name).
func New(name string) *MailBox {
	return &MailBox{
		name:     name,
		toCenter: concurrency.NewUnboundedMailbox(),
		toRunner: concurrency.NewUnboundedMailbox(),
	}
}

// Name returns the runner name this mailbox belongs to.
func (mb *MailBox) Name() string { return mb.name }

// Send enqueues mail toward the MailCenter dispatcher. Never blocks.
func (mb *MailBox) Send(m Mail) error {
	return mb.toCenter.Send(m)
}

// outbox is used by the MailCenter dispatcher to drain mail this runner
// has queued for delivery elsewhere.
func (mb *MailBox) outbox() concurrency.Mailbox { return mb.toCenter }

// deliver is used by the MailCenter dispatcher to hand mail addressed to
// this runner into its inbox. Never blocks.
func (mb *MailBox) deliver(m Mail) error {
	return mb.toRunner.Send(m)
}

// DrainOutbox removes and returns one pending outbound item, for use by
// the MailCenter dispatcher goroutine. Never blocks.
func (mb *MailBox) DrainOutbox() (Mail, bool, error) {
	v, ok, err := mb.toCenter.TryReceive()
	if err != nil || !ok {
		return Mail{}, ok, err
	}
	return v.(Mail), true, nil
}

// Deliver hands mail addressed to this runner into its inbox. Never
// blocks. Exported for the MailCenter dispatcher; within-package callers
// may use the unexported deliver.
func (mb *MailBox) Deliver(m Mail) error {
	return mb.deliver(m)
}

// TryReceive drains one piece of inbound mail without blocking, for use
// from an ActorService's OnUpdate tick.
func (mb *MailBox) TryReceive() (Mail, bool, error) {
	v, ok, err := mb.toRunner.TryReceive()
	if err != nil || !ok {
		return Mail{}, ok, err
	}
	return v.(Mail), true, nil
}

// Receive blocks until inbound mail is available or ctx is cancelled.
func (mb *MailBox) Receive(ctx context.Context) (Mail, error) {
	v, err := mb.toRunner.Receive(ctx)
	if err != nil {
		return Mail{}, err
	}
	return v.(Mail), nil
}

// Close shuts down both halves of the mailbox.
func (mb *MailBox) Close() {
	mb.toCenter.Close()
	mb.toRunner.Close()
}
