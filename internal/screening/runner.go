package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"bmdscreen/internal/doseresponse"
	"bmdscreen/internal/endpoints"
	apperrors "bmdscreen/internal/errors"
	"bmdscreen/internal/feasibility"
	"bmdscreen/internal/infrastructure"
	"bmdscreen/internal/modelfit"
	"bmdscreen/pkg/contracts/domain"
)

const (
	DefaultWorkers     = 4
	DefaultUnitTimeout = 2 * time.Minute
)

// Options configures a Runner
type Options struct {
	Workers     int
	UnitTimeout time.Duration
	// Endpoints limits screening to the named endpoints; empty means all
	Endpoints []string
}

// Runner screens batches of observations
type Runner struct {
	catalogue  *endpoints.Catalogue
	preparer   doseresponse.Preparer
	classifier *feasibility.Classifier
	modeler    modelfit.Modeler
	reporter   Reporter
	tracer     *Tracer
	logger     *slog.Logger
	opts       Options
}

// NewRunner wires a runner. A nil modeler disables fitting, a nil reporter
// discards results and a nil tracer records nothing.
func NewRunner(
	catalogue *endpoints.Catalogue,
	preparer doseresponse.Preparer,
	classifier *feasibility.Classifier,
	modeler modelfit.Modeler,
	reporter Reporter,
	tracer *Tracer,
	logger *slog.Logger,
	opts Options,
) *Runner {
	if modeler == nil {
		modeler = modelfit.Disabled{}
	}
	if reporter == nil {
		reporter = discardReporter{}
	}
	if tracer == nil {
		tracer = NoopTracer()
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = DefaultUnitTimeout
	}

	return &Runner{
		catalogue:  catalogue,
		preparer:   preparer,
		classifier: classifier,
		modeler:    modeler,
		reporter:   reporter,
		tracer:     tracer,
		logger:     logger.With(slog.String("component", "screening_runner")),
		opts:       opts,
	}
}

type unitInput struct {
	key domain.UnitKey
	obs []domain.WellObservation
}

// Run screens the selected units of obs. Unit failures are recorded in the
// batch and never abort it. The returned error is non-nil when the selection
// is invalid, when ctx is cancelled or when the reporter fails; in the last
// two cases the batch is still returned.
func (r *Runner) Run(ctx context.Context, obs []domain.WellObservation, sel Selection) (*Batch, error) {
	if err := sel.Validate(); err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	runID := infrastructure.NewID()
	ctx = infrastructure.WithRunID(ctx, runID)
	started := time.Now()

	selected := selectObservations(obs, sel)
	if len(selected) == 0 {
		if sel.All {
			return nil, apperrors.NewAppValidationError("input has no observations")
		}
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("chemical %q in input", sel.ChemicalID))
	}

	units := r.partition(endpoints.Derive(selected, r.catalogue))

	ctx, runSpan := r.tracer.StartRun(ctx, runID, len(units))
	r.logger.InfoContext(ctx, "screening started",
		slog.String("selection", sel.String()),
		slog.Int("observations", len(selected)),
		slog.Int("units", len(units)),
		slog.Int("workers", r.opts.Workers),
		slog.String("policy", r.classifier.Policy().String()))

	results := make([]domain.UnitResult, len(units))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, u := range units {
		g.Go(func() error {
			results[i] = r.screenUnit(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{
		RunID:             runID,
		StartedAt:         started,
		Variant:           string(r.catalogue.Variant()),
		Policy:            r.classifier.Policy(),
		ZeroControlPolicy: string(r.preparer.Plates.ZeroControl),
		Selection:         sel,
		Results:           results,
	}

	reportErr := r.reduce(ctx, results)
	batch.FinishedAt = time.Now()
	batch.Summary = Summarize(results)
	r.tracer.EndRun(ctx, runSpan, batch.Summary, batch.FinishedAt.Sub(started))

	r.logger.InfoContext(ctx, "screening finished",
		slog.String("summary", batch.Summary.String()),
		slog.Duration("elapsed", batch.FinishedAt.Sub(started)))

	return batch, errors.Join(ctx.Err(), reportErr)
}

// reduce hands every successful result to the reporter in unit order
func (r *Runner) reduce(ctx context.Context, results []domain.UnitResult) error {
	var errs []error
	for _, res := range results {
		if res.Failed() {
			continue
		}

		var err error
		if res.Flag.RequiresFit() {
			err = r.reporter.ReportFit(ctx, res)
		} else {
			err = r.reporter.ReportNoFit(ctx, res)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("report %s: %w", res.Key, err))
		}
	}
	return errors.Join(errs...)
}

// screenUnit runs the full pipeline for one unit. It never panics and
// always returns a result for the unit's slot.
func (r *Runner) screenUnit(parent context.Context, u unitInput) (res domain.UnitResult) {
	started := time.Now()
	res.Key = u.key

	ctx, span := r.tracer.StartUnit(parent, u.key)
	ctx, cancel := context.WithTimeout(ctx, r.opts.UnitTimeout)
	platesDropped := 0

	defer func() {
		cancel()
		if rec := recover(); rec != nil {
			res = domain.UnitResult{Key: u.key, Err: fmt.Errorf("unit panicked: %v", rec)}
			r.logger.ErrorContext(parent, "unit panicked",
				slog.String("unit", u.key.String()),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
		}
		res.Duration = time.Since(started)
		r.tracer.EndUnit(ctx, span, res, platesDropped)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = unitContextError(u.key, err)
		return res
	}

	prepared, err := r.preparer.Prepare(u.key, u.obs)
	if err != nil {
		res.Err = err
		r.logger.WarnContext(ctx, "unit skipped",
			slog.String("unit", u.key.String()),
			slog.String("error", err.Error()))
		return res
	}
	platesDropped = prepared.DroppedPlates()
	for _, d := range prepared.Plates {
		if d.Dropped {
			r.logger.DebugContext(ctx, "plate dropped",
				slog.String("unit", u.key.String()),
				slog.String("plate_id", d.PlateID),
				slog.String("reason", d.Reason))
		}
	}

	c := r.classifier.Classify(prepared.Groups)
	res.Flag = c.Flag
	res.Groups = c.Groups
	res.Table = doseresponse.Format(c.Groups)
	res.PValue = c.PValue
	res.Correlation = c.Correlation
	res.Reason = c.Reason

	if !c.Flag.RequiresFit() {
		return res
	}

	candidates, err := r.modeler.Fit(ctx, u.key, res.Table)
	if err == nil {
		var outcome domain.FitOutcome
		outcome, err = r.modeler.Select(ctx, u.key, candidates)
		if err == nil {
			res.Fit = &outcome
			return res
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Err = unitContextError(u.key, ctxErr)
	} else {
		res.Err = fmt.Errorf("model fitting for %s: %w", u.key, err)
	}
	r.logger.WarnContext(ctx, "unit failed",
		slog.String("unit", u.key.String()),
		slog.String("error", res.Err.Error()))
	return res
}

func unitContextError(key domain.UnitKey, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(fmt.Sprintf("unit %s exceeded its timeout", key), err)
	}
	return fmt.Errorf("unit %s cancelled: %w", key, err)
}

// partition groups observations into units ordered by chemical then endpoint
func (r *Runner) partition(obs []domain.WellObservation) []unitInput {
	var wanted map[string]bool
	if len(r.opts.Endpoints) > 0 {
		wanted = make(map[string]bool, len(r.opts.Endpoints))
		for _, e := range r.opts.Endpoints {
			wanted[e] = true
		}
	}

	byKey := make(map[domain.UnitKey][]domain.WellObservation)
	for _, o := range obs {
		if wanted != nil && !wanted[o.Endpoint] {
			continue
		}
		k := domain.UnitKey{ChemicalID: o.ChemicalID, Endpoint: o.Endpoint}
		byKey[k] = append(byKey[k], o)
	}

	units := make([]unitInput, 0, len(byKey))
	for k, v := range byKey {
		units = append(units, unitInput{key: k, obs: v})
	}
	sort.Slice(units, func(i, j int) bool {
		a, b := units[i].key, units[j].key
		if a.ChemicalID != b.ChemicalID {
			return a.ChemicalID < b.ChemicalID
		}
		return a.Endpoint < b.Endpoint
	})
	return units
}

func selectObservations(obs []domain.WellObservation, sel Selection) []domain.WellObservation {
	if sel.All {
		return obs
	}
	out := make([]domain.WellObservation, 0)
	for _, o := range obs {
		if o.ChemicalID == sel.ChemicalID {
			out = append(out, o)
		}
	}
	return out
}

type discardReporter struct{}

func (discardReporter) ReportNoFit(context.Context, domain.UnitResult) error { return nil }
func (discardReporter) ReportFit(context.Context, domain.UnitResult) error   { return nil }
