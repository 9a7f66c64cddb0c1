package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across dbsession.
type ErrorCode string

// Error codes. Each code is one semantic failure kind; callers match on the
// code instead of the concrete error type.
const (
	// ErrConfiguration is a malformed request shape, e.g. statement and
	// parameter counts that do not line up. Never retried.
	ErrConfiguration ErrorCode = "CONFIGURATION"
	// ErrConnectionUnavailable means no handle is bound where one is required.
	ErrConnectionUnavailable ErrorCode = "CONNECTION_UNAVAILABLE"
	// ErrTransientConflict is a serialization failure or deadlock reported by
	// the database. Retried by the executor.
	ErrTransientConflict ErrorCode = "TRANSIENT_CONFLICT"
	// ErrDatabaseExecution is any other database-reported failure.
	ErrDatabaseExecution ErrorCode = "DATABASE_EXECUTION"
	// ErrTransactionProtocol is a failure crossing the transaction boundary.
	ErrTransactionProtocol ErrorCode = "TRANSACTION_PROTOCOL"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	SQLState  string    `json:"sql_state,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithSQLState records the SQLSTATE reported by the driver.
func (e *Error) WithSQLState(state string) *Error {
	e.SQLState = state
	return e
}

// AsError returns the outermost *Error in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the outermost error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// RootCode returns the innermost error code in the chain. A transaction
// error wrapping a database error reports the database code here.
func RootCode(err error) ErrorCode {
	var code ErrorCode
	for err != nil {
		if e, ok := err.(*Error); ok {
			code = e.Code
		}
		err = errors.Unwrap(err)
	}
	return code
}

// HasCode reports whether any *Error in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// NewConfigurationError creates a CONFIGURATION error.
func NewConfigurationError(message string) *Error {
	return NewError(ErrConfiguration, message)
}

// NewConnectionUnavailableError creates a CONNECTION_UNAVAILABLE error.
func NewConnectionUnavailableError() *Error {
	return NewError(ErrConnectionUnavailable, "no initialized connection")
}

// NewTransactionError wraps cause into a TRANSACTION_PROTOCOL error.
func NewTransactionError(message string, cause error) *Error {
	return NewError(ErrTransactionProtocol, message).WithCause(cause)
}
