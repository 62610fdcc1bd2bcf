// Package apperrors defines the structured error type surfaced by every
// service in taskcore. Errors are raised with a stable Code at the point of
// detection and propagated unmodified to the HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
)

// Error is an application error carrying a stable code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Status returns the HTTP status class of the error.
func (e *Error) Status() int {
	return e.Code.HTTPStatus()
}

// New creates an error with the code's default message.
func New(code Code) *Error {
	return &Error{Code: code, Message: code.DefaultMessage()}
}

// Newf creates an error with a custom message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the code's default message that wraps cause.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Message: code.DefaultMessage(), Cause: cause}
}

// Internal wraps an unexpected failure. The cause is logged, never shown to callers.
func Internal(cause error) *Error {
	return Wrap(CodeInternal, cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	return CodeOf(err).HTTPStatus()
}
