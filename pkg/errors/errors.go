// Package errors defines the error taxonomy shared by the sync layer, the
// document store implementations, and the transport. Every failure a caller
// can see carries a Kind so the presentation layer can decide between
// retryable and terminal handling.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput is a bad caller argument. Rejected synchronously,
	// never reaches the store.
	KindInvalidInput
	// KindUnavailable is a transient store or network failure. The caller
	// may retry the triggering action.
	KindUnavailable
	// KindPermissionDenied is a non-retryable authorization failure.
	KindPermissionDenied
	// KindNotFound is an addressing failure (unknown document id).
	KindNotFound
	// KindBusy means an equivalent operation is already in flight. The
	// caller should disable the control, not retry automatically.
	KindBusy
)

// String returns the stable wire code for the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnavailable:
		return "unavailable"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire code back to its Kind.
func ParseKind(code string) Kind {
	switch code {
	case "invalid_input":
		return KindInvalidInput
	case "unavailable":
		return KindUnavailable
	case "permission_denied":
		return KindPermissionDenied
	case "not_found":
		return KindNotFound
	case "busy":
		return KindBusy
	default:
		return KindUnknown
	}
}

// Error is a Kind-tagged application error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"` // wrapped cause, for logging
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// InvalidInput creates an invalid-input error.
func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message, nil)
}

// Unavailable creates a transient-failure error wrapping its cause.
func Unavailable(message string, err error) *Error {
	return New(KindUnavailable, message, err)
}

// PermissionDenied creates an authorization error.
func PermissionDenied(message string) *Error {
	return New(KindPermissionDenied, message, nil)
}

// NotFound creates a not-found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

// Busy creates an operation-in-flight error.
func Busy(message string) *Error {
	return New(KindBusy, message, nil)
}

// KindOf extracts the Kind from err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
