package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeCapacity      ErrorType = "capacity"
	ErrorTypeUnprocessable ErrorType = "unprocessable"
	ErrorTypeCapability    ErrorType = "capability"
	ErrorTypeResource      ErrorType = "resource"
	ErrorTypeBusy          ErrorType = "busy"
	ErrorTypeRateLimited   ErrorType = "rate_limited"
	ErrorTypeUnsupported   ErrorType = "unsupported"
	ErrorTypeCancelled     ErrorType = "cancelled"
	ErrorTypeUnauthorized  ErrorType = "unauthorized"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents a structured application error. Message is shown to the
// user; Details carries the hint on how to fix the request.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error and returns the same AppError.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func newError(t ErrorType, status int, message string, details []string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:       t,
		Message:    message,
		Details:    detail,
		StatusCode: status,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

// NewCapacityError reports that a per-conversation limit was reached.
func NewCapacityError(message string, details ...string) *AppError {
	return newError(ErrorTypeCapacity, http.StatusRequestEntityTooLarge, message, details)
}

// NewUnprocessableError reports input that cannot be read (corrupt or
// encrypted). The hint should tell the user what to do about it.
func NewUnprocessableError(message, hint string, cause error) *AppError {
	e := newError(ErrorTypeUnprocessable, http.StatusUnprocessableEntity, message, []string{hint})
	e.Cause = cause
	return e
}

// NewCapabilityError wraps an unexpected failure of a processing library.
func NewCapabilityError(message string, cause error) *AppError {
	e := newError(ErrorTypeCapability, http.StatusInternalServerError, message, []string{"Please try again in a moment."})
	e.Cause = cause
	return e
}

// NewResourceError wraps a scratch storage failure.
func NewResourceError(message string, cause error) *AppError {
	e := newError(ErrorTypeResource, http.StatusInsufficientStorage, message, []string{"Please try again later."})
	e.Cause = cause
	return e
}

// NewBusyError reports that the conversation already has an operation running.
func NewBusyError(message string, details ...string) *AppError {
	return newError(ErrorTypeBusy, http.StatusConflict, message, details)
}

// NewRateLimitedError reports that the conversation ran too many operations.
func NewRateLimitedError(message string, details ...string) *AppError {
	return newError(ErrorTypeRateLimited, http.StatusTooManyRequests, message, details)
}

// NewUnsupportedError reports an unknown command or file format.
func NewUnsupportedError(message string, details ...string) *AppError {
	return newError(ErrorTypeUnsupported, http.StatusBadRequest, message, details)
}

// NewCancelledError reports a flight whose result was suppressed by cancel.
func NewCancelledError(cause error) *AppError {
	e := newError(ErrorTypeCancelled, http.StatusConflict, "Operation cancelled", nil)
	e.Cause = cause
	return e
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, nil)
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, cause error) *AppError {
	e := newError(ErrorTypeInternal, http.StatusInternalServerError, message, nil)
	e.Cause = cause
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// UserMessage renders an error for a chat reply. Errors that are not an
// AppError are reported as a generic processing failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	appErr, ok := As(err)
	if !ok {
		return "❌ Something went wrong while processing your files.\nPlease try again in a moment."
	}

	prefix := "❌ "
	switch appErr.Type {
	case ErrorTypeBusy, ErrorTypeRateLimited:
		prefix = "⏳ "
	case ErrorTypeValidation, ErrorTypeCapacity, ErrorTypeUnsupported:
		prefix = "⚠️ "
	}

	msg := prefix + appErr.Message
	if appErr.Details != "" {
		msg += "\n" + appErr.Details
	}
	return msg
}
