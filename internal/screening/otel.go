package screening

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"bmdscreen/internal/infrastructure"
	"bmdscreen/pkg/contracts/domain"
)

const TracerName = "bmdscreen.screening"

// Tracer records a span per unit and the screening counters
type Tracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.ScreeningMetrics
}

// NewTracer creates a tracer from initialised providers
func NewTracer(providers *infrastructure.OTelProviders) (*Tracer, error) {
	metrics, err := infrastructure.CreateScreeningMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create screening metrics: %w", err)
	}
	return &Tracer{tracer: providers.Tracer, metrics: metrics}, nil
}

// NoopTracer returns a tracer that records nothing
func NoopTracer() *Tracer {
	metrics, _ := infrastructure.CreateScreeningMetrics(noop.NewMeterProvider().Meter(TracerName))
	return &Tracer{tracer: tracenoop.NewTracerProvider().Tracer(TracerName), metrics: metrics}
}

// StartRun opens the span covering one batch
func (t *Tracer) StartRun(ctx context.Context, runID string, units int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "screening.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.units", units),
		),
	)
}

// StartUnit opens the span covering one (chemical, endpoint) unit
func (t *Tracer) StartUnit(ctx context.Context, key domain.UnitKey) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "screening.unit",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("unit.chemical_id", key.ChemicalID),
			attribute.String("unit.endpoint", key.Endpoint),
		),
	)
}

// EndUnit records the outcome of a unit and ends its span
func (t *Tracer) EndUnit(ctx context.Context, span trace.Span, r domain.UnitResult, platesDropped int) {
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("endpoint", r.Key.Endpoint))
	t.metrics.UnitDuration.Record(ctx, r.Duration.Seconds(), attrs)
	if platesDropped > 0 {
		t.metrics.PlatesDropped.Add(ctx, int64(platesDropped), attrs)
	}

	if r.Failed() {
		t.metrics.UnitFailures.Add(ctx, 1, attrs)
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, r.Err.Error())
		return
	}

	t.metrics.UnitsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", r.Key.Endpoint),
		attribute.String("flag", r.Flag.String()),
	))
	span.SetAttributes(
		attribute.Int("unit.flag", int(r.Flag)),
		attribute.Int("unit.dose_groups", len(r.Groups)),
	)
	span.SetStatus(codes.Ok, "")
}

// EndRun records the run counter and ends the run span
func (t *Tracer) EndRun(ctx context.Context, span trace.Span, s Summary, elapsed time.Duration) {
	defer span.End()
	t.metrics.RunsCompleted.Add(ctx, 1)
	span.SetAttributes(
		attribute.Int("run.failed", s.Failed),
		attribute.Int("run.fitted", s.Fitted),
		attribute.Float64("run.seconds", elapsed.Seconds()),
	)
}
