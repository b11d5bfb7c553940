package feasibility

import (
	"fmt"
	"math"
	"slices"

	"bmdscreen/pkg/contracts/domain"
)

// Classification is the outcome of classifying one unit
type Classification struct {
	Flag   domain.FeasibilityFlag
	Groups []domain.DoseGroup
	// PValue of the t-test on first differences; NaN when not computed or undefined
	PValue float64
	// TrendStatistic is the high-minus-low pair difference or the Spearman rho
	TrendStatistic float64
	// Correlation is Pearson(log10(dose+Epsilon), frac); NaN when not computed
	Correlation float64
	Reason      string
}

// Classifier applies one Policy. It holds no mutable state and is safe for
// concurrent use.
type Classifier struct {
	policy Policy
}

// NewClassifier validates the policy and returns a classifier
func NewClassifier(policy Policy) (*Classifier, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{policy: policy}, nil
}

// Policy returns the classifier's policy
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Classify assigns a feasibility flag to groups, which must be ordered by
// ascending concentration with NumNonNA > 0. The input is not modified.
func (c *Classifier) Classify(groups []domain.DoseGroup) Classification {
	out := Classification{
		Groups:         slices.Clone(groups),
		PValue:         math.NaN(),
		TrendStatistic: math.NaN(),
		Correlation:    math.NaN(),
	}

	n := len(groups)
	if n < MinDoseGroups {
		out.Flag = domain.FlagInsufficientDoses
		out.Reason = fmt.Sprintf("%d dose groups, need %d", n, MinDoseGroups)
		return out
	}

	doses := make([]float64, n)
	frac := make([]float64, n)
	for i, g := range groups {
		doses[i] = g.Concentration
		frac[i] = g.FracAffected()
	}

	ok, trend, reason := c.trendPasses(doses, frac)
	out.TrendStatistic = trend
	if !ok {
		out.Flag = domain.FlagNoTrend
		out.Reason = reason
		return out
	}

	_, p := oneSampleTTest(firstDifferences(frac))
	out.PValue = p
	out.Flag = c.bucket(p)
	out.Reason = fmt.Sprintf("t-test p=%.4g (%s)", p, c.policy.Buckets)

	if out.Flag.RequiresFit() {
		r := pearson(logDoses(doses), frac)
		out.Correlation = r
		if r < 0 {
			out.Flag = domain.FlagTrendReverses
			out.Reason = fmt.Sprintf("%s; pearson r=%.4g reverses trend", out.Reason, r)
		}
	}

	return out
}

// trendPasses runs the primary trend test of the policy
func (c *Classifier) trendPasses(doses, frac []float64) (bool, float64, string) {
	n := len(frac)
	switch c.policy.Trend {
	case Spearman:
		rho := spearman(logDoses(doses), frac)
		if math.IsNaN(rho) {
			return false, rho, "spearman correlation undefined"
		}
		if rho < MinSpearman {
			return false, rho, fmt.Sprintf("spearman rho=%.4g below %.2g", rho, MinSpearman)
		}
		return true, rho, ""
	default:
		high := (frac[n-1] + frac[n-2]) / 2
		low := (frac[0] + frac[1]) / 2
		diff := high - low
		if high < low {
			return false, diff, fmt.Sprintf("high-dose mean %.4g below low-dose mean %.4g", high, low)
		}
		return true, diff, ""
	}
}

// bucket maps a p-value onto a flag. NaN compares false everywhere and lands on no trend.
func (c *Classifier) bucket(p float64) domain.FeasibilityFlag {
	switch {
	case p < GoodPValue:
		return domain.FlagGood
	case p < SatisfactoryPValue:
		return domain.FlagSatisfactory
	case c.policy.Buckets == FourBucket && p < PoorPValue:
		return domain.FlagPoorResolution
	default:
		return domain.FlagNoTrend
	}
}
