package feasibility

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmdscreen/pkg/contracts/domain"
)

// series builds dose groups with a common total of scored wells
func series(doses []float64, affected []int, total int) []domain.DoseGroup {
	out := make([]domain.DoseGroup, len(doses))
	for i := range doses {
		out[i] = domain.DoseGroup{
			ChemicalID:    "C1",
			Endpoint:      "ANY24",
			Concentration: doses[i],
			NumAffected:   affected[i],
			NumNonNA:      total,
			NumTotalWells: total,
		}
	}
	return out
}

func mustClassifier(t *testing.T, trend TrendStrategy, buckets BucketTable) *Classifier {
	t.Helper()
	c, err := NewClassifier(Policy{Trend: trend, Buckets: buckets})
	require.NoError(t, err)
	return c
}

func TestClassify_FewerThanThreeGroups(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	policies := []Policy{
		{AveragePair, ThreeBucket}, {AveragePair, FourBucket},
		{Spearman, ThreeBucket}, {Spearman, FourBucket},
	}

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(3)
		doses := make([]float64, n)
		affected := make([]int, n)
		for i := range doses {
			doses[i] = float64(i) * rng.Float64() * 10
			affected[i] = rng.Intn(11)
		}
		for _, p := range policies {
			c := mustClassifier(t, p.Trend, p.Buckets)
			got := c.Classify(series(doses, affected, 10))
			require.Equal(t, domain.FlagInsufficientDoses, got.Flag, "policy=%s n=%d", p, n)
			require.True(t, math.IsNaN(got.PValue))
		}
	}
}

// TestClassify_LiteralScenario covers doses [0,1,5] with 0, 3 and 8 of 10
// affected. The trend passes and the differences [0.3, 0.5] give t=4 with one
// degree of freedom, a two-sided p of about 0.156, which is satisfactory.
func TestClassify_LiteralScenario(t *testing.T) {
	groups := series([]float64{0, 1, 5}, []int{0, 3, 8}, 10)

	fracs := []float64{groups[0].FracAffected(), groups[1].FracAffected(), groups[2].FracAffected()}
	assert.InDeltaSlice(t, []float64{0, 0.3, 0.8}, fracs, 1e-12)

	for _, buckets := range []BucketTable{ThreeBucket, FourBucket} {
		t.Run(string(buckets), func(t *testing.T) {
			got := mustClassifier(t, AveragePair, buckets).Classify(groups)

			assert.InDelta(t, 0.4, got.TrendStatistic, 1e-12, "trend passes")
			assert.InDelta(t, 0.15596, got.PValue, 1e-4)
			assert.Equal(t, domain.FlagSatisfactory, got.Flag)
			assert.Greater(t, got.Correlation, 0.0)
		})
	}
}

func TestClassify_SignificantSeries(t *testing.T) {
	// differences [0.1, 0.2, 0.1, 0.2]: t=5.196, df=3, p=0.0138
	groups := series([]float64{0, 1, 2, 5, 10}, []int{0, 1, 3, 4, 6}, 10)

	for _, trend := range []TrendStrategy{AveragePair, Spearman} {
		got := mustClassifier(t, trend, ThreeBucket).Classify(groups)
		assert.Equal(t, domain.FlagGood, got.Flag, trend)
		assert.InDelta(t, 0.013847, got.PValue, 1e-5)
		assert.InDelta(t, 0.69533, got.Correlation, 1e-4)
	}
}

func TestClassify_TrendTests(t *testing.T) {
	tests := []struct {
		name     string
		trend    TrendStrategy
		affected []int
		want     domain.FeasibilityFlag
	}{
		{"average pair decreasing", AveragePair, []int{5, 4, 1}, domain.FlagNoTrend},
		{"spearman decreasing", Spearman, []int{5, 4, 1}, domain.FlagNoTrend},
		{"spearman constant response is undefined", Spearman, []int{3, 3, 3}, domain.FlagNoTrend},
		{"spearman weak positive", Spearman, []int{2, 1, 1, 0, 3}, domain.FlagNoTrend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doses := []float64{0, 1, 5, 10, 20}[:len(tt.affected)]
			got := mustClassifier(t, tt.trend, FourBucket).Classify(series(doses, tt.affected, 10))

			assert.Equal(t, tt.want, got.Flag)
			assert.True(t, math.IsNaN(got.PValue), "t-test must not run after a failed trend test")
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestClassify_UndefinedPValue(t *testing.T) {
	var got Classification
	require.NotPanics(t, func() {
		got = mustClassifier(t, AveragePair, FourBucket).Classify(series([]float64{0, 1, 5}, []int{0, 0, 0}, 10))
	})
	assert.True(t, math.IsNaN(got.PValue))
	assert.Equal(t, domain.FlagNoTrend, got.Flag)
}

func TestClassify_EqualStepsAreSignificant(t *testing.T) {
	tests := []struct {
		name     string
		doses    []float64
		affected []int
	}{
		{"exact steps", []float64{0, 1, 5}, []int{0, 5, 10}},
		{"steps with rounding noise", []float64{0, 1, 5}, []int{1, 2, 3}},
		{"four exact steps", []float64{0, 1, 5, 10}, []int{0, 2, 4, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustClassifier(t, AveragePair, FourBucket).Classify(series(tt.doses, tt.affected, 10))

			assert.Equal(t, domain.FlagGood, got.Flag)
			assert.Equal(t, 0.0, got.PValue)
			assert.Greater(t, got.Correlation, 0.0)
		})
	}
}

// TestClassify_OverrideToTrendReverses uses a series that passes the average
// pair test and lands in the poor-resolution bucket (p=0.456) while the
// Pearson correlation with log dose is slightly negative (r=-0.059).
func TestClassify_OverrideToTrendReverses(t *testing.T) {
	groups := series([]float64{0, 6, 11, 13, 16, 18, 19}, []int{3, 0, 0, 1, 0, 4, 9}, 10)

	got := mustClassifier(t, AveragePair, FourBucket).Classify(groups)
	assert.InDelta(t, 0.45602, got.PValue, 1e-4)
	assert.InDelta(t, -0.058942, got.Correlation, 1e-5)
	assert.Equal(t, domain.FlagTrendReverses, got.Flag)

	// The three-bucket table has no poor-resolution bucket, so the same
	// series stops at no trend and the override never applies.
	got = mustClassifier(t, AveragePair, ThreeBucket).Classify(groups)
	assert.Equal(t, domain.FlagNoTrend, got.Flag)
	assert.True(t, math.IsNaN(got.Correlation))
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	groups := series([]float64{0, 1, 5}, []int{0, 3, 8}, 10)
	snapshot := slices.Clone(groups)

	got := mustClassifier(t, Spearman, FourBucket).Classify(groups)
	got.Groups[0].NumAffected = 99

	assert.Equal(t, snapshot, groups)
}

func TestPolicy(t *testing.T) {
	p, err := ParsePolicy(" Spearman ", "THREE_BUCKET")
	require.NoError(t, err)
	assert.Equal(t, Policy{Trend: Spearman, Buckets: ThreeBucket}, p)
	assert.Equal(t, "spearman/three_bucket", p.String())

	_, err = ParsePolicy("kendall", "three_bucket")
	assert.Error(t, err)
	_, err = ParsePolicy("average_pair", "two_bucket")
	assert.Error(t, err)
	_, err = NewClassifier(Policy{})
	assert.Error(t, err)

	assert.NoError(t, DefaultPolicy().Validate())
}

func TestRanks(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, ranks([]float64{-15, 0.3, 0.3, 1}))
	assert.Equal(t, []float64{3, 1, 2}, ranks([]float64{9, 1, 5}))
}

func TestOneSampleTTest(t *testing.T) {
	tStat, p := oneSampleTTest([]float64{0.3, 0.5})
	assert.InDelta(t, 4.0, tStat, 1e-12)
	assert.InDelta(t, 0.155958, p, 1e-5)

	_, p = oneSampleTTest([]float64{0.2})
	assert.True(t, math.IsNaN(p))

	tStat, p = oneSampleTTest([]float64{0, 0})
	assert.True(t, math.IsNaN(tStat))
	assert.True(t, math.IsNaN(p))

	tStat, p = oneSampleTTest([]float64{-0.5, -0.5})
	assert.True(t, math.IsInf(tStat, -1))
	assert.Equal(t, 0.0, p)

	tStat, p = oneSampleTTest([]float64{0.1, 0.09999999999999998})
	assert.True(t, math.IsInf(tStat, 1))
	assert.Equal(t, 0.0, p)
}
