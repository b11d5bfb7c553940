package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "bmdscreen/internal/errors"
)

// QueryParamValidator parses bounded query parameters and answers with an
// RFC 7807 validation problem when they are out of range.
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// Int returns the integer value of param, or fallback when it is absent.
// The second return is false once an error response has been written.
func (v *QueryParamValidator) Int(w http.ResponseWriter, r *http.Request, param string, min, max, fallback int) (int, bool) {
	n, present, err := ParseIntParam(r, param, min, max)
	if err != nil {
		v.logger.DebugContext(r.Context(), "rejected query parameter",
			slog.String("param", param),
			slog.String("value", r.URL.Query().Get(param)))
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, err.Error()))
		return 0, false
	}
	if !present {
		return fallback, true
	}
	return n, true
}

// ParseIntParam reads an integer query parameter bounded by [min, max]
func ParseIntParam(r *http.Request, param string, min, max int) (value int, present bool, err error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s must be a valid integer", param)
	}
	if n < min || n > max {
		return 0, true, fmt.Errorf("%s must be between %d and %d", param, min, max)
	}
	return n, true, nil
}
