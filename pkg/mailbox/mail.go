// Package mailbox defines the wire shape of cross-runner mail and the
// per-runner endpoint that holds it, per spec.md §4.4.
package mailbox

import "github.com/fluxorio/kestrel/pkg/types"

// Mail is the unit cross-runner actors exchange. From and To name
// runners (not services); Event is dispatched, on arrival, through the
// receiving runner's ActorService as an in-runner event of the same
// name. Body must be cloned before being handed to more than one
// recipient, since Dict is a reference type (spec.md §4.4, §14).
type Mail struct {
	From  string
	To    string
	Event string
	Body  types.Dict
}

// Clone returns a Mail with a deep copy of Body, so recipients of a
// broadcast never observe each other's in-place edits.
func (m Mail) Clone() Mail {
	return Mail{From: m.From, To: m.To, Event: m.Event, Body: m.Body.Clone()}
}

// Broadcast is the reserved To value meaning "every runner registered
// with the MailCenter except the sender" (spec.md §4.4).
const Broadcast = "all"
