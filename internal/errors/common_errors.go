package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeSchema     ErrorType = "SCHEMA"
	ErrTypeIO         ErrorType = "IO"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigError creates a configuration error: bad unique keys, unknown
// search fields, malformed filters, non-unique key combinations.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewSchemaError creates an error for a dataset whose columns do not match
// what a step expects.
func NewSchemaError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSchema, message, cause)
}

// NewIOError creates an error for unreadable sources or unwritable destinations.
func NewIOError(message string, cause error) *AppError {
	return NewAppError(ErrTypeIO, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsConfig reports whether err is a configuration error
func IsConfig(err error) bool { return TypeOf(err) == ErrTypeConfig }

// IsSchema reports whether err is a schema error
func IsSchema(err error) bool { return TypeOf(err) == ErrTypeSchema }

// IsIO reports whether err is an I/O failure
func IsIO(err error) bool { return TypeOf(err) == ErrTypeIO }
