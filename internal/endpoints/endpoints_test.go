package endpoints

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmdscreen/pkg/contracts/domain"
)

func TestNewCatalogue_Variants(t *testing.T) {
	tests := []struct {
		variant     Variant
		any24       []string
		any120Extra []string
		absent      []string
	}{
		{VariantStandard, []string{"MO24", "DP24", "SM24"}, nil, []string{"NC24", "DNC_"}},
		{VariantBRAI, []string{"MO24", "DP24", "SM24", "NC24"}, []string{"NC24"}, []string{"DNC_"}},
		{VariantDNC, []string{"MO24", "DP24", "SM24"}, []string{"DNC_"}, []string{"NC24"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			cat, err := NewCatalogue(tt.variant)
			require.NoError(t, err)
			assert.Equal(t, tt.variant, cat.Variant())

			any24, ok := cat.Lookup("ANY24")
			require.True(t, ok)
			assert.Equal(t, tt.any24, any24.Components)

			any120, ok := cat.Lookup("ANY120")
			require.True(t, ok)
			assert.Len(t, any120.Components, 18+len(tt.any24)+len(tt.any120Extra)-countShared(tt.any24, tt.any120Extra))
			for _, c := range tt.any120Extra {
				assert.Contains(t, any120.Components, c)
			}
			for _, c := range tt.absent {
				assert.NotContains(t, any120.Components, c)
			}

			abm, ok := cat.Lookup("ALL_BUT_MORT")
			require.True(t, ok)
			assert.NotContains(t, abm.Components, "MO24")
			assert.NotContains(t, abm.Components, "MORT")
			assert.Len(t, abm.Components, len(any120.Components)-2)
		})
	}
}

func countShared(a, b []string) int {
	n := 0
	for _, x := range b {
		if slices.Contains(a, x) {
			n++
		}
	}
	return n
}

func TestNewCatalogue_FixedComposites(t *testing.T) {
	cat, err := NewCatalogue(VariantStandard)
	require.NoError(t, err)

	want := map[string][]string{
		"TOT_MORT": {"MO24", "MORT"},
		"BRN_":     {"BRAI", "OTIC", "PFIN"},
		"CRAN":     {"EYE_", "SNOU", "JAW_"},
		"EDEM":     {"YSE_", "PE__"},
		"LTRK":     {"TRUN", "CFIN"},
		"MUSC":     {"CIRC", "SWIM", "SOMI"},
		"SKIN":     {"PIG_"},
		"TCHR":     {"TR__"},
	}
	for name, comps := range want {
		def, ok := cat.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, comps, def.Components, name)
	}

	assert.True(t, cat.IsComposite("ANY120"))
	assert.False(t, cat.IsComposite("MORT"))
	assert.Len(t, cat.Composites(), 11)
}

func TestNewCatalogue_UnknownVariant(t *testing.T) {
	_, err := NewCatalogue("canonical")
	assert.Error(t, err)

	_, err = ParseVariant("canonical")
	assert.Error(t, err)

	v, err := ParseVariant(" BRAI ")
	require.NoError(t, err)
	assert.Equal(t, VariantBRAI, v)
}

func TestCatalogue_LookupReturnsCopy(t *testing.T) {
	cat, err := NewCatalogue(VariantStandard)
	require.NoError(t, err)

	def, _ := cat.Lookup("ANY24")
	def.Components[0] = "XXXX"

	again, _ := cat.Lookup("ANY24")
	assert.Equal(t, "MO24", again.Components[0])
}

// TestCombine_MissingnessProperty checks over random masks that a composite
// is missing exactly when every component is missing, and otherwise equals
// the sum of the present components.
func TestCombine_MissingnessProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	choices := []domain.Value{domain.Missing, domain.Unaffected, domain.Affected}

	for iter := 0; iter < 5000; iter++ {
		n := 1 + rng.Intn(24)
		values := make([]domain.Value, n)
		wantSum, anyPresent := 0, false
		for i := range values {
			values[i] = choices[rng.Intn(len(choices))]
			if !values[i].IsMissing() {
				anyPresent = true
				wantSum += int(values[i])
			}
		}

		sum, present := Combine(values)
		require.Equal(t, anyPresent, present, "values=%v", values)
		if present {
			require.Equal(t, wantSum, sum, "values=%v", values)
		}
	}
}

func TestBinarize(t *testing.T) {
	assert.Equal(t, domain.Unaffected, Binarize(0))
	assert.Equal(t, domain.Affected, Binarize(1))
	assert.Equal(t, domain.Affected, Binarize(3))
}

func well(plate, wellID string, conc float64, endpoint string, v domain.Value) domain.WellObservation {
	return domain.WellObservation{
		ChemicalID:    "C1",
		Concentration: conc,
		PlateID:       plate,
		WellID:        wellID,
		Endpoint:      endpoint,
		Value:         v,
	}
}

func findValue(t *testing.T, obs []domain.WellObservation, wellID, endpoint string) (domain.Value, bool) {
	t.Helper()
	for _, o := range obs {
		if o.WellID == wellID && o.Endpoint == endpoint {
			return o.Value, true
		}
	}
	return 0, false
}

func TestDerive(t *testing.T) {
	cat, err := NewCatalogue(VariantStandard)
	require.NoError(t, err)

	input := []domain.WellObservation{
		well("P1", "A01", 0, "MO24", domain.Unaffected),
		well("P1", "A01", 0, "MORT", domain.Affected),
		well("P1", "A01", 0, "DP24", domain.Affected),
		well("P1", "A02", 1, "MO24", domain.Missing),
		well("P1", "A02", 1, "MORT", domain.Missing),
		well("P1", "A03", 5, "EYE_", domain.Affected),
		well("P1", "A03", 5, "SNOU", domain.Affected),
	}
	snapshot := slices.Clone(input)

	out := Derive(input, cat)

	assert.Equal(t, snapshot, input, "input must not be mutated")
	assert.Equal(t, snapshot, out[:len(input)], "primitive rows are kept in order")

	tests := []struct {
		wellID   string
		endpoint string
		want     domain.Value
		derived  bool
	}{
		{"A01", "TOT_MORT", domain.Affected, true},
		{"A01", "ANY24", domain.Affected, true},
		{"A01", "ANY120", domain.Affected, true},
		{"A01", "ALL_BUT_MORT", domain.Affected, true},
		{"A01", "CRAN", 0, false},
		{"A02", "TOT_MORT", domain.Missing, true},
		{"A02", "ANY24", domain.Missing, true},
		{"A03", "CRAN", domain.Affected, true},
		{"A03", "TOT_MORT", 0, false},
		{"A03", "EDEM", 0, false},
	}
	for _, tt := range tests {
		got, ok := findValue(t, out, tt.wellID, tt.endpoint)
		assert.Equal(t, tt.derived, ok, "%s %s", tt.wellID, tt.endpoint)
		if tt.derived {
			assert.Equal(t, tt.want, got, "%s %s", tt.wellID, tt.endpoint)
		}
	}
}

func TestDerive_DoesNotOverrideObservedComposite(t *testing.T) {
	cat, err := NewCatalogue(VariantStandard)
	require.NoError(t, err)

	input := []domain.WellObservation{
		well("P1", "A01", 0, "MO24", domain.Affected),
		well("P1", "A01", 0, "MORT", domain.Unaffected),
		well("P1", "A01", 0, "TOT_MORT", domain.Unaffected),
	}

	out := Derive(input, cat)

	count := 0
	for _, o := range out {
		if o.Endpoint == "TOT_MORT" {
			count++
			assert.Equal(t, domain.Unaffected, o.Value)
		}
	}
	assert.Equal(t, 1, count)
}

func TestDerive_ObservedCompositeIsPerChemical(t *testing.T) {
	cat, err := NewCatalogue(VariantStandard)
	require.NoError(t, err)

	other := func(endpoint string, v domain.Value) domain.WellObservation {
		o := well("P2", "B01", 1, endpoint, v)
		o.ChemicalID = "C2"
		return o
	}
	input := []domain.WellObservation{
		well("P1", "A01", 0, "MO24", domain.Affected),
		well("P1", "A01", 0, "TOT_MORT", domain.Unaffected),
		other("MO24", domain.Unaffected),
		other("MORT", domain.Affected),
	}

	out := Derive(input, cat)

	byChemical := map[string][]domain.Value{}
	for _, o := range out {
		if o.Endpoint == "TOT_MORT" {
			byChemical[o.ChemicalID] = append(byChemical[o.ChemicalID], o.Value)
		}
	}
	assert.Equal(t, []domain.Value{domain.Unaffected}, byChemical["C1"], "observed value kept, nothing derived")
	assert.Equal(t, []domain.Value{domain.Affected}, byChemical["C2"], "derived for the other chemical")
}

func TestDeriveMovement(t *testing.T) {
	series := make([]float64, 12)
	for i := range series {
		series[i] = float64(i * i)
	}

	metrics, err := DeriveMovement(series, []int{3, 7}, 3)
	require.NoError(t, err)
	require.Len(t, metrics, 4)

	// t=3: MOV = 16-9; AUC = (16+25+36) - (1+4+9)
	assert.Equal(t, MovementMetric{Name: "MOV1", Value: 7}, metrics[0])
	assert.Equal(t, MovementMetric{Name: "AUC1", Value: 63}, metrics[1])
	// t=7: MOV = 64-49; AUC = (64+81+100) - (25+36+49)
	assert.Equal(t, MovementMetric{Name: "MOV2", Value: 15}, metrics[2])
	assert.Equal(t, MovementMetric{Name: "AUC2", Value: 135}, metrics[3])
}

func TestDeriveMovement_Errors(t *testing.T) {
	series := make([]float64, 10)

	tests := []struct {
		name        string
		transitions []int
		width       int
	}{
		{"window before start", []int{1}, 3},
		{"window after end", []int{7}, 3},
		{"zero width", []int{5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveMovement(series, tt.transitions, tt.width)
			assert.Error(t, err)
		})
	}

	_, err := DeriveMovement(series, []int{8}, 3)
	assert.ErrorIs(t, err, ErrWindowOutOfRange)
}

func TestDeriveMovement_DefaultProtocol(t *testing.T) {
	series := make([]float64, 120)
	metrics, err := DeriveMovement(series, DefaultTransitions, DefaultWindow)
	assert.ErrorIs(t, err, ErrWindowOutOfRange, "last transition needs samples beyond 120")
	assert.Nil(t, metrics)

	series = make([]float64, 123)
	metrics, err = DeriveMovement(series, DefaultTransitions, DefaultWindow)
	require.NoError(t, err)
	assert.Len(t, metrics, 8)
}
