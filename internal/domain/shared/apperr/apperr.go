// Package apperr holds the error kinds shared by every layer. Domain packages
// declare their own sentinels with the helpers below so callers can match
// either the precise sentinel or its kind with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrAuthorization   = errors.New("authorization error")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrPaymentProvider = errors.New("payment provider error")
)

type Error struct {
	kind  error
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the kind sentinel the error was created with.
func (e *Error) Kind() error {
	return e.kind
}

// Retryable is true for failures of external collaborators.
func (e *Error) Retryable() bool {
	return e.kind == ErrPaymentProvider
}

func Validation(msg string) *Error    { return &Error{kind: ErrValidation, msg: msg} }
func NotFound(msg string) *Error      { return &Error{kind: ErrNotFound, msg: msg} }
func Authorization(msg string) *Error { return &Error{kind: ErrAuthorization, msg: msg} }
func Conflict(msg string) *Error      { return &Error{kind: ErrConflict, msg: msg} }
func InvalidState(msg string) *Error  { return &Error{kind: ErrInvalidState, msg: msg} }

// Provider wraps a failure returned by the payment provider.
func Provider(op string, cause error) *Error {
	return &Error{kind: ErrPaymentProvider, msg: fmt.Sprintf("payment provider: %s", op), cause: cause}
}

// Wrap attaches a kind to an arbitrary error, keeping it matchable.
func Wrap(kind error, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// KindOf returns the kind of err or nil if it carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrAuthorization, ErrConflict, ErrInvalidState, ErrPaymentProvider} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsRetryable reports whether err is a retryable collaborator failure.
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return false
}

var kindNames = map[error]string{
	ErrValidation:      "validation",
	ErrNotFound:        "not_found",
	ErrAuthorization:   "authorization",
	ErrConflict:        "conflict",
	ErrInvalidState:    "invalid_state",
	ErrPaymentProvider: "payment_provider",
}

// KindName returns a stable name for the kind of err, empty when it has none.
func KindName(err error) string {
	return kindNames[KindOf(err)]
}

// KindFromName is the inverse of KindName.
func KindFromName(name string) error {
	for kind, n := range kindNames {
		if n == name {
			return kind
		}
	}
	return nil
}
