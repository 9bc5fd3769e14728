// Package engineerr implements the spec's Result/Err(E) convention: errors
// are plain values, never exceptions, and every error carries at minimum a
// "message" field plus a stable Kind drawn from a closed taxonomy.
package engineerr

import "github.com/fluxorio/kestrel/pkg/types"

// Kind enumerates the error taxonomy. Values are stable strings so they
// can be logged, asserted on in tests, and compared across packages
// without importing engineerr for a type switch.
type Kind string

const (
	Interrupted          Kind = "Interrupted"
	ConfigInvalid        Kind = "ConfigInvalid"
	CircularDependency   Kind = "CircularDependency"
	ServiceNotFound      Kind = "ServiceNotFound"
	AlreadySubscribed    Kind = "AlreadySubscribed"
	NotSubscribed        Kind = "NotSubscribed"
	MailBoxAlreadyExists Kind = "MailBoxAlreadyExists"
	MailBoxNotFound      Kind = "MailBoxNotFound"
	MailBoxNameInvalid   Kind = "MailBoxNameInvalid"
	InvalidEpollFd       Kind = "InvalidEpollFd"
	SocketClosed         Kind = "SocketClosed"
	OsError              Kind = "OsError"
	ThreadAlreadyStarted Kind = "ThreadAlreadyStarted"
	ThreadNotStarted     Kind = "ThreadNotStarted"
)

// Error is the engine's error value. Fields always has at least a
// "message" entry when built through New, which always sets it.
type Error struct {
	Kind   Kind
	Fields types.Dict
}

func (e *Error) Error() string {
	msg, _ := e.Fields.GetString("message")
	return string(e.Kind) + ": " + msg
}

// New builds an Error of the given kind with a mandatory message and
// optional contextual fields. The fields are copied first and "message" is
// set last, so message replaces any "message" key in fields.
func New(kind Kind, message string, fields types.Dict) *Error {
	d := types.NewDict()
	for k, v := range fields {
		d[k] = v
	}
	d.SetString("message", message)
	return &Error{Kind: kind, Fields: d}
}

// Is reports whether err is an *Error of the given kind, so call sites can
// branch on the taxonomy without a type assertion.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
