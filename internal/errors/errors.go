// Package errors defines structured error kinds for table operations.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode defines specific error kinds.
type ErrorCode string

const (
	// ErrInvalidArgument is returned when input is missing or malformed
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrNoTableSelected is returned when an operation needs a bound table
	ErrNoTableSelected ErrorCode = "NO_TABLE_SELECTED"
	// ErrTableNotFound is returned when the bound table has no backing blob
	ErrTableNotFound ErrorCode = "TABLE_NOT_FOUND"
	// ErrInvalidState is returned when a call is made out of order
	ErrInvalidState ErrorCode = "INVALID_STATE"
	// ErrUnsupportedOperator is returned for an unknown condition operator
	ErrUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"
	// ErrPersist is returned when writing a table back to its blob fails
	ErrPersist ErrorCode = "PERSIST_ERROR"
	// ErrStorage is returned when reading or listing blobs fails
	ErrStorage ErrorCode = "STORAGE_ERROR"
)

// Error is a concrete error type with a code and optional details.
type Error struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		code:    code,
		message: message,
		details: make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is an ErrorCode or *Error with the same code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return t == e.code
	case *Error:
		return t.code == e.code
	}
	return false
}

// Error implements the error interface so a bare code can be used as a
// sentinel with errors.Is.
func (c ErrorCode) Error() string {
	return string(c)
}

// CodeOf returns the code carried by err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return ""
}

// Predefined error constructors for common cases

// InvalidArgument creates an error for missing or malformed input.
func InvalidArgument(op, message string) *Error {
	return New(ErrInvalidArgument, fmt.Sprintf("%s: %s", op, message))
}

// NoTableSelected creates an error for an operation issued before Table.
func NoTableSelected(op string) *Error {
	return New(ErrNoTableSelected, fmt.Sprintf("%s: no table selected", op))
}

// TableNotFound creates an error for a table without a backing blob.
func TableNotFound(table string) *Error {
	return New(ErrTableNotFound, fmt.Sprintf("table %q does not exist", table)).WithDetail("table", table)
}

// InvalidState creates an error for a call made out of order.
func InvalidState(op, message string) *Error {
	return New(ErrInvalidState, fmt.Sprintf("%s: %s", op, message))
}

// UnsupportedOperator creates an error for an unknown condition operator.
func UnsupportedOperator(op string) *Error {
	return New(ErrUnsupportedOperator, fmt.Sprintf("operator %q not supported", op)).WithDetail("operator", op)
}

// PersistError creates an error wrapping a failed table write.
func PersistError(table string, err error) *Error {
	return New(ErrPersist, fmt.Sprintf("failed to persist table %q", table)).WithDetail("table", table).Wrap(err)
}

// StorageError creates an error wrapping a failed blob read or listing.
func StorageError(message string, err error) *Error {
	return New(ErrStorage, message).Wrap(err)
}
