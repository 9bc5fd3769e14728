package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
)

// unboundedMailbox implements Mailbox over a mutex-guarded slice ring
// buffer instead of boundedMailbox's fixed channel, so Send never returns
// ErrMailboxFull and never blocks the sender. This backs the cross-runner
// actor mailbox system, whose spec explicitly has no backpressure beyond
// an unbounded channel: a slow or stalled peer must never stall the
// dispatcher thread delivering mail to it.
//
// Grounded on boundedMailbox (mailbox_impl.go) for the Mailbox contract
// shape; the buffering strategy itself has no channel equivalent, since
// Go channels are fixed-capacity by construction.
type unboundedMailbox struct {
	mu     sync.Mutex
	buf    []interface{}
	notify chan struct{} // receiver wakeup; buffered cap 1, non-blocking signal
	closed int32
}

// NewUnboundedMailbox creates a Mailbox with no fixed capacity. Capacity()
// always reports -1 to signal "unbounded" to callers that branch on it.
func NewUnboundedMailbox() Mailbox {
	return &unboundedMailbox{notify: make(chan struct{}, 1)}
}

func (mb *unboundedMailbox) Send(msg interface{}) error {
	if atomic.LoadInt32(&mb.closed) == 1 {
		return ErrMailboxClosed
	}
	mb.mu.Lock()
	mb.buf = append(mb.buf, msg)
	mb.mu.Unlock()

	select {
	case mb.notify <- struct{}{}:
	default:
	}
	return nil
}

func (mb *unboundedMailbox) Receive(ctx context.Context) (interface{}, error) {
	for {
		if msg, ok, err := mb.TryReceive(); err != nil {
			return nil, err
		} else if ok {
			return msg, nil
		}
		select {
		case <-mb.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (mb *unboundedMailbox) TryReceive() (interface{}, bool, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.buf) == 0 {
		if atomic.LoadInt32(&mb.closed) == 1 {
			return nil, false, ErrMailboxClosed
		}
		return nil, false, nil
	}
	msg := mb.buf[0]
	mb.buf = mb.buf[1:]
	return msg, true, nil
}

func (mb *unboundedMailbox) Close() {
	atomic.StoreInt32(&mb.closed, 1)
	select {
	case mb.notify <- struct{}{}:
	default:
	}
}

func (mb *unboundedMailbox) Capacity() int { return -1 }

func (mb *unboundedMailbox) Size() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.buf)
}

func (mb *unboundedMailbox) IsClosed() bool {
	return atomic.LoadInt32(&mb.closed) == 1
}
