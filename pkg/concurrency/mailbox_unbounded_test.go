package concurrency

import (
	"context"
	"testing"
	"time"
)

func TestUnboundedMailboxNeverBlocksSend(t *testing.T) {
	mb := NewUnboundedMailbox()
	for i := 0; i < 10000; i++ {
		if err := mb.Send(i); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if mb.Size() != 10000 {
		t.Fatalf("expected size 10000, got %d", mb.Size())
	}
	if mb.Capacity() != -1 {
		t.Fatalf("expected unbounded capacity marker -1, got %d", mb.Capacity())
	}
}

func TestUnboundedMailboxFIFOOrder(t *testing.T) {
	mb := NewUnboundedMailbox()
	mb.Send("a")
	mb.Send("b")
	mb.Send("c")

	for _, want := range []string{"a", "b", "c"} {
		msg, ok, err := mb.TryReceive()
		if err != nil || !ok {
			t.Fatalf("TryReceive: %v, ok=%v", err, ok)
		}
		if msg != want {
			t.Fatalf("got %v, want %v", msg, want)
		}
	}
	if _, ok, _ := mb.TryReceive(); ok {
		t.Fatalf("expected empty mailbox")
	}
}

func TestUnboundedMailboxReceiveBlocksUntilSend(t *testing.T) {
	mb := NewUnboundedMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(5 * time.Millisecond)
		mb.Send("late")
	}()

	msg, err := mb.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg != "late" {
		t.Fatalf("got %v, want late", msg)
	}
}

func TestUnboundedMailboxCloseUnblocksReceive(t *testing.T) {
	mb := NewUnboundedMailbox()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := mb.Receive(ctx)
		done <- err
	}()

	time.Sleep(5 * time.Millisecond)
	mb.Close()

	select {
	case err := <-done:
		if err != ErrMailboxClosed {
			t.Fatalf("expected ErrMailboxClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}
