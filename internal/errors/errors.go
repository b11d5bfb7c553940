package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is an error that already knows its HTTP status and the stable
// error_code reported to clients.
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

// ValidationError names the offending request field
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

// Results API errors
var (
	ErrRunNotFound  = New(http.StatusNotFound, "RUN_NOT_FOUND", "screening run not found")
	ErrUnitNotFound = New(http.StatusNotFound, "UNIT_NOT_FOUND", "screening unit not found")
)

// ErrValidation creates a 400 error carrying the field and reason
func ErrValidation(field, message string) *APIError {
	err := New(http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed")
	err.Details = ValidationError{Field: field, Message: message}
	return err
}
