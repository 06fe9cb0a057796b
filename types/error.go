package types

import "fmt"

// ErrorCode represents a unified error code across the library.
type ErrorCode string

// Scheduling error codes
const (
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrBackendFailure ErrorCode = "BACKEND_FAILURE"
	ErrShutdown       ErrorCode = "SHUTDOWN"
	ErrQueueFull      ErrorCode = "QUEUE_FULL"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
)

// Configuration error codes
const (
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrNoClients     ErrorCode = "NO_CLIENTS"
	ErrInvalidState  ErrorCode = "INVALID_STATE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Client    string    `json:"client,omitempty"`
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

// WithClient sets the backend client name.
func (e *Error) WithClient(client string) *Error {
	e.Client = client
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
