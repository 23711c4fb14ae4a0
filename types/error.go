package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Task and tool error codes
const (
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrTaskCancelled     ErrorCode = "TASK_CANCELLED"
	ErrTurnLimitExceeded ErrorCode = "TURN_LIMIT_EXCEEDED"
	ErrTimeout           ErrorCode = "TIMEOUT"
)

// Action error codes
const (
	ErrUnsupportedAction ErrorCode = "UNSUPPORTED_ACTION"
	ErrInvalidAction     ErrorCode = "INVALID_ACTION"
)

// Capability error codes (browser and vision-model collaborators)
const (
	ErrCapability     ErrorCode = "CAPABILITY_ERROR"
	ErrAuthentication ErrorCode = "AUTHENTICATION"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrModelNotFound  ErrorCode = "MODEL_NOT_FOUND"
	ErrUpstreamError  ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
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

// NewValidationError reports invalid input to a tool call or constructor.
// Tasks are never created from invalid input.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrValidation, Message: fmt.Sprintf(format, args...), HTTPStatus: 400}
}

// NewNotFoundError reports an unknown task or session id, including ids
// that existed but were evicted.
func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf(format, args...), HTTPStatus: 404}
}

// NewUnsupportedActionError reports an action kind outside the closed set.
func NewUnsupportedActionError(kind string) *Error {
	return &Error{Code: ErrUnsupportedAction, Message: fmt.Sprintf("unsupported action: %s", kind)}
}

// NewInvalidActionError reports a malformed parameter set for a known action.
func NewInvalidActionError(format string, args ...any) *Error {
	return &Error{Code: ErrInvalidAction, Message: fmt.Sprintf(format, args...)}
}

// NewCapabilityError reports a failed browser or model call. The failure is
// contained within the owning task and never crosses task boundaries.
func NewCapabilityError(provider, message string) *Error {
	return &Error{Code: ErrCapability, Message: message, Provider: provider}
}

// NewTurnLimitError reports a task that exhausted its turn budget without a
// final answer.
func NewTurnLimitError(maxTurns int) *Error {
	return &Error{
		Code:    ErrTurnLimitExceeded,
		Message: fmt.Sprintf("turn limit exceeded: no final answer after %d turns", maxTurns),
	}
}

// NewTimeoutError reports a caller-side deadline expiry.
func NewTimeoutError(message string) *Error {
	return &Error{Code: ErrTimeout, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	return GetErrorCode(err) == ErrNotFound
}

// IsValidation reports whether err carries the VALIDATION_ERROR code.
func IsValidation(err error) bool {
	return GetErrorCode(err) == ErrValidation
}
