package doseresponse

import (
	"sort"

	"bmdscreen/pkg/contracts/domain"
)

// DefaultMinScoredFraction is the minimum NumNonNA/NumTotalWells a group needs
const DefaultMinScoredFraction = 0.5

// Build groups observations by concentration. Groups with no scored well are
// dropped because their affected fraction is undefined. The result is ordered
// by ascending concentration.
func Build(key domain.UnitKey, obs []domain.WellObservation) []domain.DoseGroup {
	byConc := make(map[float64]*domain.DoseGroup)

	for _, o := range obs {
		g, ok := byConc[o.Concentration]
		if !ok {
			g = &domain.DoseGroup{
				ChemicalID:    key.ChemicalID,
				Endpoint:      key.Endpoint,
				Concentration: o.Concentration,
			}
			byConc[o.Concentration] = g
		}

		g.NumTotalWells++
		if o.Value.IsMissing() {
			continue
		}
		g.NumNonNA++
		if o.Value == domain.Affected {
			g.NumAffected++
		}
	}

	groups := make([]domain.DoseGroup, 0, len(byConc))
	for _, g := range byConc {
		if g.NumNonNA == 0 {
			continue
		}
		groups = append(groups, *g)
	}
	sortByConcentration(groups)
	return groups
}

// FilterWellCount drops groups whose scored count is below minFraction of
// their well count and returns the survivors by ascending concentration.
func FilterWellCount(groups []domain.DoseGroup, minFraction float64) []domain.DoseGroup {
	out := make([]domain.DoseGroup, 0, len(groups))
	for _, g := range groups {
		if float64(g.NumNonNA) < minFraction*float64(g.NumTotalWells) {
			continue
		}
		out = append(out, g)
	}
	sortByConcentration(out)
	return out
}

func sortByConcentration(groups []domain.DoseGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Concentration < groups[j].Concentration
	})
}
