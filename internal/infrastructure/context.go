package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NewID returns a fresh UUID v4 string, used for run and trace IDs
func NewID() string {
	return uuid.New().String()
}

// EnsureTraceID returns ctx unchanged if it already carries a trace ID,
// otherwise a child context with a generated one.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, NewID())
	}
	return ctx
}

// LoggerWithContext returns the global logger annotated with the context IDs.
func LoggerWithContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if traceID := GetTraceID(ctx); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	if runID := GetRunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = GetLogger()
	}
	return logger.With("component", component)
}
