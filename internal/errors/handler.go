package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem types served by the results API (RFC 7807 "type" member)
const (
	TypeValidation   = "/errors/validation"
	TypeNotFound     = "/errors/not-found"
	TypeRateLimit    = "/errors/rate-limit"
	TypeInternal     = "/errors/internal"
	TypeTimeout      = "/errors/timeout"
	TypeRunNotFound  = "/errors/run/not-found"
	TypeUnitNotFound = "/errors/unit/not-found"
	TypeStorage      = "/errors/storage"
)

// ProblemDetails is an RFC 7807 problem document. Extensions are flattened
// into the top-level JSON object.
type ProblemDetails struct {
	Type       string
	Title      string
	Status     int
	Detail     string
	Instance   string
	Extensions map[string]interface{}
}

// NewProblemDetails creates a new problem document
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds a member such as trace_id or error_code
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// Render implements render.Renderer
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON writes the standard members over any extension of the same name
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		doc[k] = v
	}
	doc["type"], doc["title"], doc["status"] = pd.Type, pd.Title, pd.Status
	if pd.Detail != "" {
		doc["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		doc["instance"] = pd.Instance
	}
	return json.Marshal(doc)
}

// apiErrorTypes maps APIError codes onto problem types; unknown codes are internal
var apiErrorTypes = map[string]string{
	"VALIDATION_FAILED": TypeValidation,
	"RUN_NOT_FOUND":     TypeRunNotFound,
	"UNIT_NOT_FOUND":    TypeUnitNotFound,
}

// appErrorProblems maps AppError types that can surface from the store
var appErrorProblems = map[ErrorType]struct {
	status      int
	problemType string
	title       string
}{
	ErrTypeNotFound:   {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
	ErrTypeValidation: {http.StatusBadRequest, TypeValidation, "Validation Failed"},
	ErrTypeStorage:    {http.StatusServiceUnavailable, TypeStorage, "Storage Error"},
}

// ErrorHandler turns handler errors and panics into problem responses
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. includeStack adds the goroutine
// stack to panic responses and is meant for --debug only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and responds with its problem document
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	h.write(w, r, h.ErrorToProblem(err, r))
}

// ErrorToProblem converts an error to its problem document
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"the request was cancelled before it completed", r.URL.Path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		problemType, ok := apiErrorTypes[apiErr.ErrorCode]
		if !ok {
			problemType = TypeInternal
		}
		problem := NewProblemDetails(apiErr.StatusCode, problemType, http.StatusText(apiErr.StatusCode),
			apiErr.Message, r.URL.Path).WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if m, ok := appErrorProblems[appErr.Type]; ok {
			return NewProblemDetails(m.status, m.problemType, m.title, appErr.Message, r.URL.Path)
		}
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"an unexpected error occurred", r.URL.Path)
}

// Middleware recovers panics raised by downstream handlers
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := string(debug.Stack())
			h.logger.ErrorContext(r.Context(), "panic recovered",
				slog.Any("panic", rec),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("path", r.URL.Path),
				slog.String("stack", stack))

			problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
				"Internal Server Error", "an unexpected error occurred", r.URL.Path)
			if h.includeStack {
				problem.WithExtension("panic", fmt.Sprint(rec)).WithExtension("stack", stack)
			}
			h.write(w, r, problem)
		}()

		next.ServeHTTP(w, r)
	})
}

// NotFound answers unknown routes
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"no route matches this path", r.URL.Path))
}

// MethodNotAllowed answers known routes hit with the wrong method
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeNotFound, "Method Not Allowed",
		fmt.Sprintf("%s is not supported here; the results API is read-only", r.Method), r.URL.Path))
}

func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}
