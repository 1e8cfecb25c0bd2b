package camera

import (
	"errors"
	"fmt"
)

// Kind classifies controller errors so callers can branch on them.
type Kind string

// Error kinds.
const (
	KindNotReady           Kind = "NOT_READY"
	KindInvalidState       Kind = "INVALID_STATE"
	KindNoDevicesAvailable Kind = "NO_DEVICES_AVAILABLE"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindAccess             Kind = "ACCESS_ERROR"
)

// Error is returned by every controller operation that fails.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, op, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// accessError wraps a device collaborator failure. Errors that already carry a
// kind are passed through unchanged.
func accessError(op, message string, cause error) error {
	var ce *Error
	if errors.As(cause, &ce) {
		return cause
	}
	return newError(KindAccess, op, message, cause)
}

// KindOf returns the kind of err, or "" when err is not a controller error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err is a controller error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
