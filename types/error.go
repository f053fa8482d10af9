package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across mediaflow.
type ErrorCode string

// Configuration error codes
const (
	ErrConfiguration ErrorCode = "CONFIGURATION"
)

// Transport error codes
const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrForbidden         ErrorCode = "FORBIDDEN"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrRateLimited       ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	ErrModelOverloaded   ErrorCode = "MODEL_OVERLOADED"
	ErrUpstreamError     ErrorCode = "UPSTREAM_ERROR"
	ErrInvalidResponse   ErrorCode = "INVALID_RESPONSE"
	ErrProtocol          ErrorCode = "PROTOCOL"
	ErrUploadUnavailable ErrorCode = "UPLOAD_UNAVAILABLE"
)

// Job error codes
const (
	ErrJobFailed ErrorCode = "JOB_FAILED"
	ErrTimeout   ErrorCode = "TIMEOUT"
)

// Local I/O error codes
const (
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrIO           ErrorCode = "IO"
)

// Error represents a structured error with code, message, and metadata.
//
// Transport failures set HTTPStatus and Payload, terminal job failures set
// JobStatus, and local I/O failures set Path.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Endpoint   string    `json:"endpoint,omitempty"`
	JobStatus  string    `json:"job_status,omitempty"`
	Path       string    `json:"path,omitempty"`
	Payload    any       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.HTTPStatus > 0 {
		msg = fmt.Sprintf("HTTP %d: %s", e.HTTPStatus, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
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

// WithEndpoint sets the endpoint reference the failing call targeted.
func (e *Error) WithEndpoint(endpoint string) *Error {
	e.Endpoint = endpoint
	return e
}

// WithPayload attaches the raw decoded response payload.
func (e *Error) WithPayload(payload any) *Error {
	e.Payload = payload
	return e
}

// WithPath sets the local file path involved in an I/O failure.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithJobStatus sets the terminal job status.
func (e *Error) WithJobStatus(status string) *Error {
	e.JobStatus = status
	return e
}

// AsError extracts a *Error from anywhere in err's chain.
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

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
