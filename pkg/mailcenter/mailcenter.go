// Package mailcenter implements the process-wide singleton that routes
// Mail between runners' MailBoxes, per spec.md §4.4.
package mailcenter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/mailbox"
	"github.com/fluxorio/kestrel/pkg/types"
)

const maxNameBytes = 64

// MailCenter is a process-wide singleton routing Mail between runners. A
// dedicated dispatcher goroutine drains every registered MailBox's outbox
// and either unicasts to the named recipient or, for mailbox.Broadcast,
// clones and fans the mail out to every other registered runner.
//
// Grounded on original_source/src/server/engine/mail_center.cc's
// MailCenter::RunOnThread dispatcher loop (per-mailbox TryReceive under a
// lock, unicast lookup vs. broadcast-to-all-but-sender) and its
// ValidateName ordering (empty, then too-long, then "all" reserved);
// generalized from the original's two-channel-pair-per-peer plumbing to
// Go's single mailbox.MailBox abstraction.
type MailCenter struct {
	mu      sync.Mutex
	boxes   map[string]*mailbox.MailBox
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

var (
	globalOnce sync.Once
	global     *MailCenter
)

// Global returns the process-wide MailCenter, constructing it on first
// use (original_source's std::call_once singleton pattern).
func Global(logger *slog.Logger) *MailCenter {
	globalOnce.Do(func() {
		global = New(logger)
	})
	return global
}

// New constructs an independent MailCenter; tests use this to avoid
// sharing state through the process-wide singleton.
func New(logger *slog.Logger) *MailCenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailCenter{boxes: make(map[string]*mailbox.MailBox), logger: logger}
}

// ValidateName applies the three ordered checks the runner-naming rules
// require: non-empty, at most 64 bytes, and never the reserved broadcast
// name "all" (spec.md §4.4).
func ValidateName(name string) error {
	if name == "" {
		return engineerr.New(engineerr.MailBoxNameInvalid, "mailbox name must not be empty", types.NewDict())
	}
	if len(name) > maxNameBytes {
		return engineerr.New(engineerr.MailBoxNameInvalid, "mailbox name exceeds 64 bytes",
			types.NewDict().SetString("name", name).SetInt64("length", int64(len(name))))
	}
	if name == mailbox.Broadcast {
		return engineerr.New(engineerr.MailBoxNameInvalid, `mailbox name "all" is reserved for broadcast`, types.NewDict())
	}
	return nil
}

// Create registers and returns a new MailBox named name.
func (c *MailCenter) Create(name string) (*mailbox.MailBox, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.boxes[name]; exists {
		return nil, engineerr.New(engineerr.MailBoxAlreadyExists, "mailbox already registered",
			types.NewDict().SetString("name", name))
	}
	box := mailbox.New(name)
	c.boxes[name] = box
	return box, nil
}

// Delete unregisters and closes the named mailbox.
func (c *MailCenter) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	box, ok := c.boxes[name]
	if !ok {
		return engineerr.New(engineerr.MailBoxNotFound, "mailbox not registered",
			types.NewDict().SetString("name", name))
	}
	box.Close()
	delete(c.boxes, name)
	return nil
}

// Start launches the dispatcher goroutine. Calling Start while already
// running is a no-op.
func (c *MailCenter) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	dispatchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	c.mu.Unlock()

	go c.dispatchLoop(dispatchCtx)
}

// Shutdown stops the dispatcher goroutine and blocks until it exits.
func (c *MailCenter) Shutdown() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// dispatchLoop repeatedly drains every registered mailbox's outbox and
// routes what it finds. It never sleeps or blocks: a pass that moves no
// mail is followed at once by the next, so the loop spins while idle and
// only checks ctx between passes.
func (c *MailCenter) dispatchLoop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !c.dispatchOnce() {
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

// dispatchOnce drains one pending item from each registered mailbox's
// outbox and routes it. Returns true if any mail moved.
func (c *MailCenter) dispatchOnce() bool {
	c.mu.Lock()
	snapshot := make([]*mailbox.MailBox, 0, len(c.boxes))
	for _, box := range c.boxes {
		snapshot = append(snapshot, box)
	}
	c.mu.Unlock()

	moved := false
	for _, box := range snapshot {
		m, ok, err := box.DrainOutbox()
		if err != nil || !ok {
			continue
		}
		moved = true
		c.route(m)
	}
	return moved
}

func (c *MailCenter) route(m mailbox.Mail) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.To == mailbox.Broadcast {
		for name, box := range c.boxes {
			if name == m.From {
				continue
			}
			if err := box.Deliver(m.Clone()); err != nil {
				c.logger.Warn("broadcast delivery failed", "to", name, "from", m.From, "event", m.Event, "error", err)
			}
		}
		return
	}

	target, ok := c.boxes[m.To]
	if !ok {
		c.logger.Warn("mail addressed to unknown runner dropped", "to", m.To, "from", m.From, "event", m.Event)
		return
	}
	if err := target.Deliver(m); err != nil {
		c.logger.Warn("unicast delivery failed", "to", m.To, "from", m.From, "event", m.Event, "error", err)
	}
}
