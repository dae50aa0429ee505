// Package apperr defines the error taxonomy surfaced by the ledger engine.
// Every business-rule violation is reported as an *Error carrying one of the
// kinds below; storage-level failures are wrapped as Internal without leaking
// driver details to callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind int

const (
	Validation   Kind = iota + 1 // missing or out-of-range input
	Permission                   // caller lacks an active membership or role
	NotFound                     // entity or token absent
	InvalidState                 // operation not legal in the entity's current state
	Conflict                     // duplicate membership, double-acceptance race loser
	Expired                      // invitation past expires_at
	Overpayment                  // repayment would exceed principal
	Internal                     // storage or transaction failure
)

// String returns the taxonomy name for the kind.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation_error"
	case Permission:
		return "permission_error"
	case NotFound:
		return "not_found"
	case InvalidState:
		return "invalid_state"
	case Conflict:
		return "conflict"
	case Expired:
		return "expired"
	case Overpayment:
		return "overpayment"
	default:
		return "internal_error"
	}
}

// Error is a classified application error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with the given message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The cause is preserved for logs but
// callers should only rely on the kind and message.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the caller-facing message of err. Unclassified errors get a
// generic message so storage internals are never surfaced.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
