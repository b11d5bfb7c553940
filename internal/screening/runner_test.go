package screening

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bmdscreen/internal/doseresponse"
	"bmdscreen/internal/endpoints"
	apperrors "bmdscreen/internal/errors"
	"bmdscreen/internal/feasibility"
	"bmdscreen/internal/modelfit"
	"bmdscreen/pkg/contracts/domain"
)

// HATC is not a component of any composite, so no derived units appear
const endpoint = "HATC"

func unitObs(chem string, doses []float64, affected []int, total int) []domain.WellObservation {
	var out []domain.WellObservation
	for i, d := range doses {
		for w := 0; w < total; w++ {
			v := domain.Unaffected
			if w < affected[i] {
				v = domain.Affected
			}
			out = append(out, domain.WellObservation{
				ChemicalID:    chem,
				Concentration: d,
				PlateID:       "P1",
				WellID:        fmt.Sprintf("%g-%02d", d, w),
				Endpoint:      endpoint,
				Value:         v,
			})
		}
	}
	return out
}

func batchInput() []domain.WellObservation {
	var obs []domain.WellObservation
	obs = append(obs, unitObs("C3", []float64{0, 1, 5}, []int{5, 4, 1}, 10)...) // flag 1
	obs = append(obs, unitObs("C1", []float64{0, 1, 5}, []int{0, 3, 8}, 10)...) // flag 3
	obs = append(obs, unitObs("C2", []float64{0, 1}, []int{0, 3}, 10)...)       // flag 0
	return obs
}

type recordingReporter struct {
	noFit []domain.UnitResult
	fit   []domain.UnitResult
	order []string
	err   error
}

func (r *recordingReporter) ReportNoFit(_ context.Context, res domain.UnitResult) error {
	r.noFit = append(r.noFit, res)
	r.order = append(r.order, res.Key.ChemicalID)
	return r.err
}

func (r *recordingReporter) ReportFit(_ context.Context, res domain.UnitResult) error {
	r.fit = append(r.fit, res)
	r.order = append(r.order, res.Key.ChemicalID)
	return r.err
}

type fakeModeler struct {
	mu    sync.Mutex
	calls []domain.UnitKey
	fit   func(ctx context.Context, key domain.UnitKey) error
}

func (m *fakeModeler) Fit(ctx context.Context, key domain.UnitKey, _ domain.DoseResponseTable) ([]modelfit.CandidateModel, error) {
	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()
	if m.fit != nil {
		if err := m.fit(ctx, key); err != nil {
			return nil, err
		}
	}
	return []modelfit.CandidateModel{{Name: "logistic", Converged: true}}, nil
}

func (m *fakeModeler) Select(_ context.Context, _ domain.UnitKey, c []modelfit.CandidateModel) (domain.FitOutcome, error) {
	return domain.FitOutcome{SelectedModel: c[0].Name, Candidates: len(c)}, nil
}

func newTestRunner(t *testing.T, modeler modelfit.Modeler, reporter Reporter, opts Options) *Runner {
	t.Helper()
	cat, err := endpoints.NewCatalogue(endpoints.VariantStandard)
	require.NoError(t, err)
	classifier, err := feasibility.NewClassifier(feasibility.DefaultPolicy())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(cat, doseresponse.NewPreparer(doseresponse.RetainZeroControl), classifier,
		modeler, reporter, nil, logger, opts)
}

func TestRun_RoutesByFlag(t *testing.T) {
	defer goleak.VerifyNone(t)

	modeler := &fakeModeler{}
	reporter := &recordingReporter{}
	runner := newTestRunner(t, modeler, reporter, Options{Workers: 2})

	batch, err := runner.Run(context.Background(), batchInput(), SelectAll())
	require.NoError(t, err)

	require.Len(t, batch.Results, 3)
	assert.Equal(t, []string{"C1", "C2", "C3"}, reporter.order, "reduction follows unit order")

	flags := map[string]domain.FeasibilityFlag{}
	for _, r := range batch.Results {
		require.NoError(t, r.Err)
		flags[r.Key.ChemicalID] = r.Flag
	}
	assert.Equal(t, domain.FlagSatisfactory, flags["C1"])
	assert.Equal(t, domain.FlagInsufficientDoses, flags["C2"])
	assert.Equal(t, domain.FlagNoTrend, flags["C3"])

	require.Len(t, reporter.fit, 1)
	assert.Equal(t, "C1", reporter.fit[0].Key.ChemicalID)
	require.NotNil(t, reporter.fit[0].Fit)
	assert.Equal(t, "logistic", reporter.fit[0].Fit.SelectedModel)
	assert.Equal(t, 3, reporter.fit[0].Table.Len())
	assert.Len(t, reporter.noFit, 2)
	for _, r := range reporter.noFit {
		assert.Nil(t, r.Fit)
	}

	assert.Equal(t, []domain.UnitKey{{ChemicalID: "C1", Endpoint: endpoint}}, modeler.calls,
		"only fit-path units reach the modeler")

	assert.Equal(t, 3, batch.Summary.Units)
	assert.Equal(t, 0, batch.Summary.Failed)
	assert.Equal(t, 1, batch.Summary.Fitted)
	assert.Equal(t, "standard", batch.Variant)
	assert.Equal(t, "average_pair/four_bucket", batch.Policy.String())
	assert.NotEmpty(t, batch.RunID)
}

func TestRun_SingleChemical(t *testing.T) {
	defer goleak.VerifyNone(t)

	reporter := &recordingReporter{}
	batch, err := newTestRunner(t, nil, reporter, Options{}).
		Run(context.Background(), batchInput(), SelectChemical("C2"))
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	assert.Equal(t, "C2", batch.Results[0].Key.ChemicalID)
	assert.Equal(t, "chemical:C2", batch.Selection.String())
}

func TestRun_SelectionErrors(t *testing.T) {
	runner := newTestRunner(t, nil, nil, Options{})

	_, err := runner.Run(context.Background(), batchInput(), SelectChemical("C404"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = runner.Run(context.Background(), batchInput(), Selection{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = runner.Run(context.Background(), batchInput(), Selection{All: true, ChemicalID: "C1"})
	assert.Error(t, err)

	_, err = runner.Run(context.Background(), nil, SelectAll())
	assert.Error(t, err)
}

func TestRun_CompositesBecomeUnits(t *testing.T) {
	defer goleak.VerifyNone(t)

	obs := unitObs("C1", []float64{0, 1, 5}, []int{0, 3, 8}, 10)
	for i := range obs {
		obs[i].Endpoint = "MORT"
	}

	batch, err := newTestRunner(t, nil, nil, Options{}).Run(context.Background(), obs, SelectAll())
	require.NoError(t, err)

	var got []string
	for _, r := range batch.Results {
		got = append(got, r.Key.Endpoint)
	}
	assert.Equal(t, []string{"ANY120", "MORT", "TOT_MORT"}, got)

	batch, err = newTestRunner(t, nil, nil, Options{Endpoints: []string{"TOT_MORT"}}).Run(context.Background(), obs, SelectAll())
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "TOT_MORT", batch.Results[0].Key.Endpoint)
}

func TestRun_UnitFailuresAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	obs := batchInput()
	obs = append(obs, unitObs("C4", []float64{0, 1, 5}, []int{0, 3, 8}, 10)...)
	obs = append(obs, unitObs("C5", []float64{0, 1, 5}, []int{0, 3, 8}, 10)...)
	// C6 scores one well twice
	dup := unitObs("C6", []float64{0, 1, 5}, []int{0, 3, 8}, 10)
	dup[1].WellID = dup[0].WellID
	obs = append(obs, dup...)

	modeler := &fakeModeler{fit: func(ctx context.Context, key domain.UnitKey) error {
		switch key.ChemicalID {
		case "C4":
			<-ctx.Done()
			return ctx.Err()
		case "C5":
			panic("fitter crashed")
		}
		return nil
	}}
	reporter := &recordingReporter{}
	runner := newTestRunner(t, modeler, reporter, Options{Workers: 3, UnitTimeout: 200 * time.Millisecond})

	batch, err := runner.Run(context.Background(), obs, SelectAll())
	require.NoError(t, err)

	byChem := map[string]domain.UnitResult{}
	for _, r := range batch.Results {
		byChem[r.Key.ChemicalID] = r
	}

	assert.True(t, apperrors.IsType(byChem["C4"].Err, apperrors.ErrTypeTimeout), "got %v", byChem["C4"].Err)
	assert.ErrorContains(t, byChem["C5"].Err, "panicked")
	assert.ErrorIs(t, byChem["C6"].Err, apperrors.ErrUnexpectedGroupShape)
	assert.NoError(t, byChem["C1"].Err)

	assert.Equal(t, 6, batch.Summary.Units)
	assert.Equal(t, 3, batch.Summary.Failed)
	assert.Equal(t, []string{"C1", "C2", "C3"}, reporter.order, "failed units are not reported")
}

func TestRun_ReporterErrorKeepsBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	reporter := &recordingReporter{err: errors.New("disk full")}
	batch, err := newTestRunner(t, nil, reporter, Options{}).Run(context.Background(), batchInput(), SelectAll())

	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	require.NotNil(t, batch)
	assert.Len(t, batch.Results, 3)
	assert.Len(t, reporter.order, 3, "every unit is still offered to the reporter")
}

func TestRun_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := newTestRunner(t, nil, nil, Options{}).Run(ctx, batchInput(), SelectAll())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batch)
	assert.Equal(t, 3, batch.Summary.Failed)
}

func TestRun_PlateFilterApplied(t *testing.T) {
	defer goleak.VerifyNone(t)

	obs := unitObs("C1", []float64{0, 1, 5}, []int{0, 3, 8}, 10)
	bad := unitObs("C1", []float64{0, 7}, []int{4, 2}, 6)
	for i := range bad {
		bad[i].PlateID = "P2"
	}
	obs = append(obs, bad...)

	batch, err := newTestRunner(t, nil, nil, Options{}).Run(context.Background(), obs, SelectAll())
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)

	for _, g := range batch.Results[0].Groups {
		assert.NotEqual(t, 7.0, g.Concentration)
		assert.Equal(t, 10, g.NumTotalWells, "P2 wells must not be counted")
	}
}

func TestSummary_String(t *testing.T) {
	s := Summarize([]domain.UnitResult{
		{Flag: domain.FlagGood, Fit: &domain.FitOutcome{}},
		{Flag: domain.FlagNoTrend},
		{Flag: domain.FlagNoTrend},
		{Err: errors.New("x")},
	})
	assert.Equal(t, "units=4 failed=1 fitted=1 no_trend=2 good=1", s.String())
}
