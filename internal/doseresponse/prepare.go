package doseresponse

import (
	"fmt"
	"math"

	apperrors "bmdscreen/internal/errors"
	"bmdscreen/pkg/contracts/domain"
)

// Preparer runs plate filtering, aggregation and the well-count filter
type Preparer struct {
	Plates            PlateFilter
	MinScoredFraction float64
}

// NewPreparer returns a preparer with the default thresholds
func NewPreparer(policy ZeroControlPolicy) Preparer {
	return Preparer{
		Plates:            NewPlateFilter(policy),
		MinScoredFraction: DefaultMinScoredFraction,
	}
}

// Prepared is the filtered, aggregated view of one unit
type Prepared struct {
	Groups []domain.DoseGroup
	Plates []PlateDecision
}

// DroppedPlates returns the number of plates removed by the plate filter
func (p Prepared) DroppedPlates() int {
	n := 0
	for _, d := range p.Plates {
		if d.Dropped {
			n++
		}
	}
	return n
}

// Prepare checks the unit's shape and returns its surviving dose groups.
// A malformed unit yields an error wrapping apperrors.ErrUnexpectedGroupShape.
func (p Preparer) Prepare(key domain.UnitKey, obs []domain.WellObservation) (Prepared, error) {
	if err := checkShape(key, obs); err != nil {
		return Prepared{}, err
	}

	kept, decisions := p.Plates.Apply(obs)
	groups := FilterWellCount(Build(key, kept), p.MinScoredFraction)

	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return Prepared{}, apperrors.NewGroupShapeError(key.ChemicalID, key.Endpoint, err.Error())
		}
	}

	return Prepared{Groups: groups, Plates: decisions}, nil
}

// checkShape rejects units mixing chemicals or endpoints, scoring a well twice
// or carrying unusable concentrations.
func checkShape(key domain.UnitKey, obs []domain.WellObservation) error {
	if len(obs) == 0 {
		return apperrors.NewGroupShapeError(key.ChemicalID, key.Endpoint, "unit has no observations")
	}

	type wellID struct{ plate, well string }
	seen := make(map[wellID]float64, len(obs))

	for i, o := range obs {
		if o.ChemicalID != key.ChemicalID || o.Endpoint != key.Endpoint {
			return apperrors.NewGroupShapeError(key.ChemicalID, key.Endpoint,
				fmt.Sprintf("row %d belongs to %s/%s", i, o.ChemicalID, o.Endpoint))
		}
		if math.IsNaN(o.Concentration) || math.IsInf(o.Concentration, 0) || o.Concentration < 0 {
			return apperrors.NewGroupShapeError(key.ChemicalID, key.Endpoint,
				fmt.Sprintf("row %d has concentration %g", i, o.Concentration))
		}

		id := wellID{o.PlateID, o.WellID}
		if prev, dup := seen[id]; dup {
			return apperrors.NewGroupShapeError(key.ChemicalID, key.Endpoint,
				fmt.Sprintf("well %s/%s scored twice (concentrations %g and %g)", o.PlateID, o.WellID, prev, o.Concentration))
		}
		seen[id] = o.Concentration
	}
	return nil
}
