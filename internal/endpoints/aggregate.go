package endpoints

import (
	"bmdscreen/pkg/contracts/domain"
)

// Combine sums the scored component values. present is false when every
// component is missing, in which case the composite itself is missing.
func Combine(values []domain.Value) (sum int, present bool) {
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		present = true
		sum += int(v)
	}
	return sum, present
}

// Binarize maps a composite sum onto an affected/unaffected response
func Binarize(sum int) domain.Value {
	if sum > 0 {
		return domain.Affected
	}
	return domain.Unaffected
}

// Derive returns a new slice holding every input observation followed by the
// composite observations of cat. A composite is derived for a well only when
// at least one of its components was recorded there, and never for a chemical
// whose input already carries that endpoint. Components absent from a well count as
// missing. The input slice is not modified.
func Derive(obs []domain.WellObservation, cat *Catalogue) []domain.WellObservation {
	type wellScores struct {
		proto  domain.WellObservation
		scores map[string]domain.Value
	}

	order := make([]domain.WellKey, 0)
	wells := make(map[domain.WellKey]*wellScores)
	observed := make(map[domain.UnitKey]bool)

	for _, o := range obs {
		observed[domain.UnitKey{ChemicalID: o.ChemicalID, Endpoint: o.Endpoint}] = true
		k := o.Key()
		w, ok := wells[k]
		if !ok {
			w = &wellScores{proto: o, scores: make(map[string]domain.Value)}
			wells[k] = w
			order = append(order, k)
		}
		w.scores[o.Endpoint] = o.Value
	}

	out := make([]domain.WellObservation, len(obs), len(obs)+len(order)*len(cat.composites))
	copy(out, obs)

	values := make([]domain.Value, 0, 32)
	for _, k := range order {
		w := wells[k]
		for _, def := range cat.composites {
			if observed[domain.UnitKey{ChemicalID: w.proto.ChemicalID, Endpoint: def.Name}] {
				continue
			}

			values = values[:0]
			recorded := false
			for _, name := range def.Components {
				v, ok := w.scores[name]
				if !ok {
					v = domain.Missing
				} else {
					recorded = true
				}
				values = append(values, v)
			}
			if !recorded {
				continue
			}

			value := domain.Missing
			if sum, present := Combine(values); present {
				value = Binarize(sum)
			}

			composite := w.proto
			composite.Endpoint = def.Name
			composite.Value = value
			out = append(out, composite)
		}
	}

	return out
}
