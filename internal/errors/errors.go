package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidRequest    ErrorType = "invalid_request"
	ErrorTypeConfiguration     ErrorType = "configuration"
	ErrorTypeUpstream          ErrorType = "upstream"
	ErrorTypeMalformedUpstream ErrorType = "malformed_upstream_response"
	ErrorTypeUnexpected        ErrorType = "unexpected"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`

	// Set only for upstream errors that carried an HTTP response.
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Diagnostics returns the text shown in the details field when verbose errors are enabled.
func (e *AppError) Diagnostics() string {
	if e.Details != "" {
		return e.Details
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

// NewInvalidRequestError creates a new error for missing or malformed client input
func NewInvalidRequestError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewConfigurationError creates a new error for missing server-side configuration
func NewConfigurationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConfiguration,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewUpstreamError creates a new error for transport failures talking to the upstream API
func NewUpstreamError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewUpstreamStatusError creates a new error for a non-2xx upstream response
func NewUpstreamStatusError(status int, body string, cause error) *AppError {
	return &AppError{
		Type:           ErrorTypeUpstream,
		Message:        fmt.Sprintf("upstream returned status %d", status),
		Details:        body,
		StatusCode:     http.StatusInternalServerError,
		Cause:          cause,
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

// NewMalformedUpstreamError creates a new error for a 2xx upstream response with an unexpected shape
func NewMalformedUpstreamError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeMalformedUpstream,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewUnexpectedError creates a new catch-all error
func NewUnexpectedError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnexpected,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// AsAppError returns err as an *AppError, wrapping anything else as unexpected.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewUnexpectedError("unexpected error", err)
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
