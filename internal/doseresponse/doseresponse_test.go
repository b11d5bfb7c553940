package doseresponse

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bmdscreen/internal/errors"
	"bmdscreen/pkg/contracts/domain"
)

var unit = domain.UnitKey{ChemicalID: "C1", Endpoint: "MORT"}

// plateWells builds one observation per value at a single concentration
func plateWells(plate string, conc float64, values ...domain.Value) []domain.WellObservation {
	out := make([]domain.WellObservation, len(values))
	for i, v := range values {
		out[i] = domain.WellObservation{
			ChemicalID:    unit.ChemicalID,
			Concentration: conc,
			PlateID:       plate,
			WellID:        fmt.Sprintf("%s-%g-%02d", plate, conc, i),
			Endpoint:      unit.Endpoint,
			Value:         v,
		}
	}
	return out
}

const (
	na = domain.Missing
	u  = domain.Unaffected
	a  = domain.Affected
)

func TestPlateFilter_DropsBackgroundPlate(t *testing.T) {
	var obs []domain.WellObservation
	// P1: 6 controls, 4 hits (66.7% > 50%)
	obs = append(obs, plateWells("P1", 0, a, a, a, a, u, u)...)
	obs = append(obs, plateWells("P1", 5, a, u, u)...)
	obs = append(obs, plateWells("P1", 10, a, a, u)...)
	// P2: 6 controls, 3 hits (exactly 50%, kept)
	obs = append(obs, plateWells("P2", 0, a, a, a, u, u, u)...)
	obs = append(obs, plateWells("P2", 5, a, u, u)...)

	kept, decisions := NewPlateFilter(RetainZeroControl).Apply(obs)

	for _, o := range kept {
		assert.NotEqual(t, "P1", o.PlateID, "every P1 well must be removed, including non-zero concentrations")
	}
	assert.Len(t, kept, 9)

	require.Len(t, decisions, 2)
	assert.Equal(t, PlateDecision{PlateID: "P1", Controls: 6, Hits: 4, Dropped: true, Reason: "4 of 6 control wells affected"}, decisions[0])
	assert.Equal(t, PlateDecision{PlateID: "P2", Controls: 6, Hits: 3}, decisions[1])

	groups := Build(unit, kept)
	for _, g := range groups {
		assert.NotEqual(t, 10.0, g.Concentration, "concentration only present on the dropped plate")
	}
}

func TestPlateFilter_ZeroControlPolicy(t *testing.T) {
	obs := plateWells("P9", 5, a, a, u)

	tests := []struct {
		policy   ZeroControlPolicy
		wantKept int
		dropped  bool
	}{
		{RetainZeroControl, 3, false},
		{ExcludeZeroControl, 0, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			kept, decisions := NewPlateFilter(tt.policy).Apply(obs)
			assert.Len(t, kept, tt.wantKept)
			require.Len(t, decisions, 1)
			assert.Equal(t, 0, decisions[0].Controls)
			assert.Equal(t, tt.dropped, decisions[0].Dropped)
		})
	}
}

func TestParseZeroControlPolicy(t *testing.T) {
	p, err := ParseZeroControlPolicy("Exclude")
	require.NoError(t, err)
	assert.Equal(t, ExcludeZeroControl, p)

	_, err = ParseZeroControlPolicy("ignore")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	var obs []domain.WellObservation
	obs = append(obs, plateWells("P1", 5, a, u, na, a)...)
	obs = append(obs, plateWells("P1", 0, u, u, u)...)
	obs = append(obs, plateWells("P1", 1, na, na)...)

	groups := Build(unit, obs)

	want := []domain.DoseGroup{
		{ChemicalID: "C1", Endpoint: "MORT", Concentration: 0, NumAffected: 0, NumNonNA: 3, NumTotalWells: 3},
		{ChemicalID: "C1", Endpoint: "MORT", Concentration: 5, NumAffected: 2, NumNonNA: 3, NumTotalWells: 4},
	}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterWellCount(t *testing.T) {
	groups := []domain.DoseGroup{
		{Concentration: 10, NumAffected: 1, NumNonNA: 4, NumTotalWells: 10},
		{Concentration: 1, NumAffected: 1, NumNonNA: 5, NumTotalWells: 10},
		{Concentration: 0, NumAffected: 0, NumNonNA: 9, NumTotalWells: 10},
	}

	out := FilterWellCount(groups, DefaultMinScoredFraction)

	require.Len(t, out, 2)
	assert.Equal(t, 0.0, out[0].Concentration)
	assert.Equal(t, 1.0, out[1].Concentration, "exactly half scored is kept")
	assert.Equal(t, 10.0, groups[0].Concentration, "input order untouched")
}

// TestPrepare_Invariants checks the count invariant and strict dose ordering
// over randomly generated units.
func TestPrepare_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := []domain.Value{na, u, a}
	concs := []float64{0, 0.1, 1, 5, 10, 50}

	for iter := 0; iter < 300; iter++ {
		var obs []domain.WellObservation
		for p := 0; p < 1+rng.Intn(3); p++ {
			plate := fmt.Sprintf("P%d", p)
			for _, c := range concs {
				n := rng.Intn(6)
				vs := make([]domain.Value, n)
				for i := range vs {
					vs[i] = values[rng.Intn(len(values))]
				}
				obs = append(obs, plateWells(plate, c, vs...)...)
			}
		}
		if len(obs) == 0 {
			continue
		}

		prepared, err := NewPreparer(RetainZeroControl).Prepare(unit, obs)
		require.NoError(t, err)

		for i, g := range prepared.Groups {
			require.True(t, 0 <= g.NumAffected && g.NumAffected <= g.NumNonNA && g.NumNonNA <= g.NumTotalWells, "%+v", g)
			require.Positive(t, g.NumNonNA)
			if i > 0 {
				require.Greater(t, g.Concentration, prepared.Groups[i-1].Concentration)
			}
		}
		require.NoError(t, Format(prepared.Groups).Validate())
	}
}

func TestPrepare_GroupShapeErrors(t *testing.T) {
	good := plateWells("P1", 0, u, u)

	mixed := slices.Clone(good)
	mixed[1].Endpoint = "ANY24"

	dup := slices.Clone(good)
	dup[1].WellID = dup[0].WellID

	tests := []struct {
		name string
		obs  []domain.WellObservation
	}{
		{"empty unit", nil},
		{"mixed endpoints", mixed},
		{"well scored twice", dup},
		{"negative concentration", plateWells("P1", -1, u)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreparer(RetainZeroControl).Prepare(unit, tt.obs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrUnexpectedGroupShape))
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeGroupShape))
		})
	}
}

func TestPrepare_CountsDroppedPlates(t *testing.T) {
	var obs []domain.WellObservation
	obs = append(obs, plateWells("P1", 0, a, a, u)...)
	obs = append(obs, plateWells("P2", 0, u, u, u)...)
	obs = append(obs, plateWells("P2", 1, a, u, u)...)

	prepared, err := NewPreparer(RetainZeroControl).Prepare(unit, obs)
	require.NoError(t, err)
	assert.Equal(t, 1, prepared.DroppedPlates())
	assert.Len(t, prepared.Groups, 2)
}

func TestFormat(t *testing.T) {
	groups := []domain.DoseGroup{
		{ChemicalID: "C1", Endpoint: "MORT", Concentration: 0, NumAffected: 0, NumNonNA: 10, NumTotalWells: 12},
		{ChemicalID: "C1", Endpoint: "MORT", Concentration: 1, NumAffected: 3, NumNonNA: 9, NumTotalWells: 12},
		{ChemicalID: "C1", Endpoint: "MORT", Concentration: 5, NumAffected: 8, NumNonNA: 10, NumTotalWells: 10},
	}
	snapshot := slices.Clone(groups)

	first := Format(groups)
	second := Format(groups)

	want := domain.DoseResponseTable{Rows: []domain.DoseResponseRow{
		{Index: 0, Dose: 0, NumAffected: 0, TotalNum: 10},
		{Index: 1, Dose: 1, NumAffected: 3, TotalNum: 9},
		{Index: 2, Dose: 5, NumAffected: 8, TotalNum: 10},
	}}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("Format() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Format() not deterministic (-first +second):\n%s", diff)
	}
	assert.Equal(t, snapshot, groups)

	assert.Empty(t, Format(nil).Rows)
}
