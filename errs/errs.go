package errs

import (
	"errors"
	"fmt"
)

var (
	Unauthenticated = NewUnauthenticatedError("unauthenticated")
)

type Error struct {
	Kind    Kind
	Message string
	Field   *string
}

type Kind string

const (
	KindInvalidArgument   Kind = "invalid_argument"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindBusy              Kind = "busy"
	KindInvalidTransition Kind = "invalid_transition"
	KindPermissionDenied  Kind = "permission_denied"
	KindUnauthenticated   Kind = "unauthenticated"
)

func NewInvalidArgumentError(field, message string) *Error {
	return &Error{
		Kind:    KindInvalidArgument,
		Message: message,
		Field:   &field,
	}
}

func NewNotFoundError(message string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: message,
	}
}

// NewConflictError signals a lost race or a violated uniqueness invariant.
// The caller may retry after re-reading state.
func NewConflictError(message string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: message,
	}
}

// NewBusyError signals a lock that could not be acquired in time.
// The caller should retry with backoff.
func NewBusyError(message string) *Error {
	return &Error{
		Kind:    KindBusy,
		Message: message,
	}
}

// NewInvalidTransitionError signals a state machine rejecting the requested
// move. Not retryable.
func NewInvalidTransitionError(message string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: message,
	}
}

func NewPermissionDeniedError(message string) *Error {
	return &Error{
		Kind:    KindPermissionDenied,
		Message: message,
	}
}

func NewUnauthenticatedError(message string) *Error {
	return &Error{
		Kind:    KindUnauthenticated,
		Message: message,
	}
}

func (e *Error) Error() string {
	if e.Field != nil {
		return fmt.Sprintf("%s (field: %s): %s", e.Kind, *e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func isKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsNotFound(err error) bool          { return isKind(err, KindNotFound) }
func IsConflict(err error) bool          { return isKind(err, KindConflict) }
func IsBusy(err error) bool              { return isKind(err, KindBusy) }
func IsInvalidTransition(err error) bool { return isKind(err, KindInvalidTransition) }
func IsPermissionDenied(err error) bool  { return isKind(err, KindPermissionDenied) }
func IsInvalidArgument(err error) bool   { return isKind(err, KindInvalidArgument) }
