package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"bmdscreen/pkg/contracts"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /healthz
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler. A nil store is reported
// as "disabled".
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status    string    `json:"status"`
	Store     string    `json:"store"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck responds 200 when the store answers a ping, 503 otherwise
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Store:     "disabled",
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp.Store = "ok"
		if err := h.store.Ping(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "result store ping failed", slog.String("error", err.Error()))
			resp.Status = "degraded"
			resp.Store = "unreachable"
			render.Status(r, http.StatusServiceUnavailable)
		}
	}

	render.JSON(w, r, resp)
}
