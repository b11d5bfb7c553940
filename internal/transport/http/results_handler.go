package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "bmdscreen/internal/errors"
	"bmdscreen/internal/middleware"
	"bmdscreen/internal/resultstore"
	"bmdscreen/pkg/contracts/domain"
)

// ResultStore is the read side of the result store used by the API
type ResultStore interface {
	ListRuns(ctx context.Context, limit int) ([]resultstore.RunRecord, error)
	GetRun(ctx context.Context, runID string) (resultstore.RunRecord, error)
	ListUnits(ctx context.Context, runID string, filter resultstore.UnitFilter) ([]resultstore.UnitRecord, error)
	GetUnit(ctx context.Context, runID, chemicalID, endpoint string) (resultstore.UnitRecord, error)
}

const (
	// DefaultRunLimit caps GET /runs when no limit is given
	DefaultRunLimit = 50
	// MaxRunLimit is the largest accepted ?limit
	MaxRunLimit = 1000
)

// ResultsHandler serves stored screening runs
type ResultsHandler struct {
	store        ResultStore
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	params       *middleware.QueryParamValidator
}

// NewResultsHandler creates a results handler
func NewResultsHandler(store ResultStore, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ResultsHandler {
	return &ResultsHandler{
		store:        store,
		logger:       logger.With(slog.String("component", "results_handler")),
		errorHandler: errorHandler,
		params:       middleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the results routes
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/runs", h.ListRuns)
	r.Route("/runs/{id}", func(r chi.Router) {
		r.Get("/", h.GetRun)
		r.Get("/units", h.ListUnits)
		r.Get("/units/{chemical}/{endpoint}", h.GetUnit)
	})
	return r
}

// ListRuns handles GET /runs
func (h *ResultsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.params.Int(w, r, "limit", 1, MaxRunLimit, DefaultRunLimit)
	if !ok {
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /runs/{id}
func (h *ResultsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleStoreError(w, r, err, apierrors.ErrRunNotFound)
		return
	}
	render.JSON(w, r, run)
}

// ListUnits handles GET /runs/{id}/units
func (h *ResultsHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	var filter resultstore.UnitFilter
	flag, ok := h.params.Int(w, r, "flag", int(domain.FlagInsufficientDoses), int(domain.FlagTrendReverses), -1)
	if !ok {
		return
	}
	if flag >= 0 {
		filter.Flag = &flag
	}

	units, err := h.store.ListUnits(r.Context(), runID, filter)
	if err != nil {
		h.handleStoreError(w, r, err, apierrors.ErrRunNotFound)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"run_id": runID,
		"units":  units,
		"count":  len(units),
	})
}

// GetUnit handles GET /runs/{id}/units/{chemical}/{endpoint}
func (h *ResultsHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.store.GetUnit(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "chemical"), chi.URLParam(r, "endpoint"))
	if err != nil {
		h.handleStoreError(w, r, err, apierrors.ErrUnitNotFound)
		return
	}
	render.JSON(w, r, unit)
}

// handleStoreError maps store not-found errors onto the resource specific API error
func (h *ResultsHandler) handleStoreError(w http.ResponseWriter, r *http.Request, err error, notFound *apierrors.APIError) {
	if apierrors.IsType(err, apierrors.ErrTypeNotFound) {
		h.errorHandler.HandleError(w, r, notFound)
		return
	}
	h.errorHandler.HandleError(w, r, err)
}
