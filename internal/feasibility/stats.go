package feasibility

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// logDoses returns log10(dose + Epsilon) for each dose
func logDoses(doses []float64) []float64 {
	out := make([]float64, len(doses))
	for i, d := range doses {
		out[i] = math.Log10(d + Epsilon)
	}
	return out
}

// pearson returns the Pearson correlation, NaN when either series is constant
func pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	if constant(x) || constant(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// spearman returns the rank correlation using average ranks for ties
func spearman(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	return pearson(ranks(x), ranks(y))
}

// ranks assigns 1-based ranks, averaging tied values
func ranks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	out := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// zeroVarianceTolerance is the sd/|mean| ratio below which a sample counts as
// having no spread, so rounding noise in equal steps matches exact equal steps.
const zeroVarianceTolerance = 1e-12

// oneSampleTTest runs a two-sided t-test of sample against mean zero.
// p is NaN only when the test is undefined: fewer than two values, or every
// value zero. A nonzero sample without spread gives t=±Inf and p=0.
func oneSampleTTest(sample []float64) (t, p float64) {
	n := len(sample)
	if n < 2 {
		return math.NaN(), math.NaN()
	}

	mean, sd := stat.MeanStdDev(sample, nil)
	if math.IsNaN(sd) {
		return math.NaN(), math.NaN()
	}
	if sd <= zeroVarianceTolerance*math.Abs(mean) || sd == 0 {
		if mean == 0 {
			return math.NaN(), math.NaN()
		}
		return math.Inf(int(math.Copysign(1, mean))), 0
	}

	t = mean / (sd / math.Sqrt(float64(n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	p = 2 * dist.Survival(math.Abs(t))
	return t, math.Min(p, 1)
}

// firstDifferences returns v[i+1]-v[i]
func firstDifferences(v []float64) []float64 {
	if len(v) < 2 {
		return nil
	}
	out := make([]float64, len(v)-1)
	for i := range out {
		out[i] = v[i+1] - v[i]
	}
	return out
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}
