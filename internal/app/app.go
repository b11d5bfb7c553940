package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"bmdscreen/internal/config"
	"bmdscreen/internal/infrastructure"
	"bmdscreen/internal/resultstore"
	transport "bmdscreen/internal/transport/http"
	"bmdscreen/pkg/contracts"
)

// Application owns the long-lived pieces of the results API: the result
// store, telemetry providers, router and HTTP server.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         *resultstore.Store
	OTelProviders *infrastructure.OTelProviders
	Router        http.Handler
	Server        *http.Server

	listener net.Listener
	errCh    chan error
}

// Options tweaks how New builds the application
type Options struct {
	// Debug adds stack traces to problem responses
	Debug bool
}

// New opens the result store and telemetry and assembles the router.
// Resources opened before a failure are released before returning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Application, error) {
	if cfg.Store.Driver == "none" {
		return nil, fmt.Errorf("serve needs a result store: set store.driver to sqlite or pgx")
	}

	logger = infrastructure.WithComponent(logger, "app")
	logger.InfoContext(ctx, "application starting",
		slog.String("version", contracts.Version),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("addr", cfg.Server.Addr))

	store, err := resultstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
	if err != nil {
		return nil, err
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	router, err := transport.NewRouter(transport.RouterDeps{
		Store:     store,
		Providers: providers,
		Config:    cfg.Server,
		Logger:    logger,
		Debug:     opts.Debug || cfg.Logging.Development,
	})
	if err != nil {
		providers.Shutdown(context.Background())
		store.Close()
		return nil, err
	}

	return &Application{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		OTelProviders: providers,
		Router:        router,
		Server:        transport.NewServer(cfg.Server, router),
		errCh:         make(chan error, 1),
	}, nil
}

// Start binds the listen address and serves in the background
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Config.Server.Addr, err)
	}
	a.listener = ln

	go func() {
		a.errCh <- a.Server.Serve(ln)
	}()

	a.Logger.InfoContext(ctx, "results API listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr reports the bound address once Start has succeeded
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop drains the server and releases telemetry and the store
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.listener != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close result store: %w", err))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled or the server fails, then stops
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		a.Stop(context.WithoutCancel(ctx))
		return err
	}

	var serveErr error
	select {
	case err := <-a.errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	return errors.Join(serveErr, a.Stop(context.WithoutCancel(ctx)))
}
