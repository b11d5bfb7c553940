package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bmdscreen/internal/config"
	apierrors "bmdscreen/internal/errors"
	"bmdscreen/internal/infrastructure"
	"bmdscreen/internal/middleware"
)

// Store is what the API needs from the result store
type Store interface {
	ResultStore
	Pinger
}

// RouterDeps holds the router collaborators. Providers may be nil, in
// which case requests are not traced and /metrics is not mounted.
type RouterDeps struct {
	Store     Store
	Providers *infrastructure.OTelProviders
	Config    config.ServerConfig
	Logger    *slog.Logger
	Debug     bool
}

// NewRouter builds the results API router
func NewRouter(deps RouterDeps) (chi.Router, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apierrors.NewErrorHandler(logger, deps.Debug)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.DefaultSecureHeaders().Handler)
	r.Use(errorHandler.Middleware)
	if deps.Providers != nil {
		otelMW, err := middleware.NewOTelMiddleware(deps.Providers)
		if err != nil {
			return nil, err
		}
		r.Use(otelMW.Handler)
	}
	r.Use(middleware.NewRateLimiter(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst, logger).Handler)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Get("/healthz", NewHealthHandler(deps.Store, logger).HealthCheck)
	if deps.Providers != nil && deps.Providers.PrometheusHTTP != nil {
		r.Method(http.MethodGet, "/metrics", deps.Providers.PrometheusHTTP)
	}

	r.Mount("/api/v1", NewResultsHandler(deps.Store, logger, errorHandler).Routes())
	return r, nil
}

// NewServer wraps handler in an http.Server using the configured timeouts
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
