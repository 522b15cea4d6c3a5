// Package apperr gives the handful of error categories spec §7 names
// a place to live as real Go errors, instead of only as a fmt.Errorf
// message a caller has to pattern-match. Grounded on the teacher's
// split between plain Go errors and the string reason codes it
// attaches to a rejected command (sim.CommandRejectQueueLimit,
// sim.CommandRejectUnknownActor): here the reason code is a typed
// Kind, carried on the error itself via the Kind() method rather than
// a side channel.
package apperr

import "errors"

// Kind names one of the error categories spec §7 distinguishes.
type Kind string

const (
	// KindProtocol marks a malformed or out-of-sequence client message.
	KindProtocol Kind = "protocol"
	// KindAuthorization marks a request the caller isn't allowed to make.
	KindAuthorization Kind = "authorization"
	// KindNotFound marks a lookup against a room, player, or resource
	// that doesn't exist.
	KindNotFound Kind = "not_found"
	// KindTransientIO marks a failure a retry might clear (a database
	// write, a signing-secret read) rather than a caller mistake.
	KindTransientIO Kind = "transient_io"
	// KindFatal marks a failure the process cannot recover from.
	KindFatal Kind = "fatal"
)

// Error wraps an underlying error with a Kind a caller can branch on
// without parsing the message.
type Error struct {
	kind Kind
	err  error
}

// New wraps err under kind. A nil err yields a nil *Error.
func New(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

func (e *Error) Error() string { return e.err.Error() }

// Kind satisfies the small interface callers use to branch on error
// category without depending on this concrete type.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.err }

// Kinded is the interface a caller tests for with errors.As rather
// than importing this package's concrete Error type.
type Kinded interface {
	Kind() Kind
	error
}

// KindOf reports the Kind attached to err, if any error in its chain
// satisfies Kinded.
func KindOf(err error) (Kind, bool) {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind(), true
	}
	return "", false
}
