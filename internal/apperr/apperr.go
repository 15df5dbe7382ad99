package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for callers. The HTTP layer maps kinds to status
// codes; the engine and filter only ever reason about kinds.
type Kind string

const (
	// InvalidArgument marks malformed input. Not retryable.
	InvalidArgument Kind = "invalid_argument"
	// NotFound marks an absent sender, receiver, or transfer.
	NotFound Kind = "not_found"
	// FailedPrecondition marks a business-rule rejection: inactive sender,
	// blocked receiver, daily limit, approval wait, non-pending state, high
	// fraud risk.
	FailedPrecondition Kind = "failed_precondition"
	// PermissionDenied marks a receiver identity mismatch or an invalid key.
	PermissionDenied Kind = "permission_denied"
	// Aborted marks optimistic-concurrency exhaustion. Safe to retry.
	Aborted Kind = "aborted"
	// Unavailable marks a collaborator timeout, an open circuit, or a busy
	// lock. Retryable after backoff.
	Unavailable Kind = "unavailable"
	// Internal marks an unexpected failure; logged with a correlation id.
	Internal Kind = "internal"
)

// Error carries a kind, a human-readable message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind keeping the cause for errors.Is/As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind of err, defaulting to Internal for anything that
// is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf extracts the caller-facing message, defaulting to a generic one
// so raw internals never leak to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may safely re-issue the request.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Aborted, Unavailable:
		return true
	default:
		return false
	}
}

// FromCollaborator re-classifies an error that crossed a collaborator
// boundary: cancellations and deadline expiry become Unavailable, existing
// kinds pass through, anything else is Internal (the collaborator contract
// was violated).
func FromCollaborator(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(Unavailable, name+" timed out", err)
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(Internal, name+" failed", err)
}
