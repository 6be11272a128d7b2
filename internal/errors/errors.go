package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	ErrInvalidRequest    = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrNotFound          = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrRunInProgress     = New(http.StatusConflict, "RUN_IN_PROGRESS", "A run is already in progress")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrInternalServer    = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		errors,
	)
}

// FromAppError maps an AppError chain onto the HTTP error it should be reported as.
func FromAppError(err error) *APIError {
	switch TypeOf(err) {
	case ErrTypeConfig, ErrTypeValidation:
		return NewWithDetails(http.StatusBadRequest, "CONFIGURATION_ERROR", "Run configuration is invalid", err.Error())
	case ErrTypeSchema:
		return NewWithDetails(http.StatusUnprocessableEntity, "SCHEMA_ERROR", "Dataset does not match the run configuration", err.Error())
	case ErrTypeNotFound:
		return NewWithDetails(http.StatusNotFound, "NOT_FOUND", "Input not found", err.Error())
	case ErrTypeIO:
		return NewWithDetails(http.StatusInternalServerError, "IO_FAILURE", "Could not read or write a file", err.Error())
	default:
		return NewWithDetails(http.StatusInternalServerError, "RUN_FAILED", fmt.Sprintf("run failed: %v", err), nil)
	}
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}
