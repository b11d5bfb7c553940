package domain

import (
	"fmt"
	"math"
)

// DoseGroup aggregates all wells sharing one concentration within a
// (chemical, endpoint) unit.
type DoseGroup struct {
	ChemicalID    string  `json:"chemical_id"`
	Endpoint      string  `json:"endpoint"`
	Concentration float64 `json:"concentration"`
	NumAffected   int     `json:"num_affected"`
	NumNonNA      int     `json:"num_nonna"`
	NumTotalWells int     `json:"num_total_wells"`
}

// FracAffected returns NumAffected/NumNonNA, or NaN when no well was scored
func (g DoseGroup) FracAffected() float64 {
	if g.NumNonNA == 0 {
		return math.NaN()
	}
	return float64(g.NumAffected) / float64(g.NumNonNA)
}

// Validate checks 0 <= NumAffected <= NumNonNA <= NumTotalWells
func (g DoseGroup) Validate() error {
	if g.NumAffected < 0 || g.NumAffected > g.NumNonNA || g.NumNonNA > g.NumTotalWells {
		return fmt.Errorf("dose group %s/%s@%g violates count invariant: affected=%d nonna=%d total=%d",
			g.ChemicalID, g.Endpoint, g.Concentration, g.NumAffected, g.NumNonNA, g.NumTotalWells)
	}
	return nil
}

// DoseResponseRow is one row of the canonical table handed to model fitting
type DoseResponseRow struct {
	Index       int     `json:"index"`
	Dose        float64 `json:"dose"`
	NumAffected int     `json:"num_affected"`
	TotalNum    int     `json:"total_num"`
}

// DoseResponseTable is the canonical (dose, num_affected, total_num) sequence.
// Doses are unique and strictly increasing; TotalNum is the non-missing count.
type DoseResponseTable struct {
	Rows []DoseResponseRow `json:"rows"`
}

// Len returns the number of dose rows
func (t DoseResponseTable) Len() int {
	return len(t.Rows)
}

// Doses returns the dose column
func (t DoseResponseTable) Doses() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Dose
	}
	return out
}

// Validate checks that doses are strictly increasing and counts are consistent
func (t DoseResponseTable) Validate() error {
	for i, r := range t.Rows {
		if r.Index != i {
			return fmt.Errorf("row %d has index %d", i, r.Index)
		}
		if r.NumAffected < 0 || r.NumAffected > r.TotalNum {
			return fmt.Errorf("row %d: num_affected %d outside [0, %d]", i, r.NumAffected, r.TotalNum)
		}
		if i > 0 && !(r.Dose > t.Rows[i-1].Dose) {
			return fmt.Errorf("row %d: dose %g not greater than previous dose %g", i, r.Dose, t.Rows[i-1].Dose)
		}
	}
	return nil
}
