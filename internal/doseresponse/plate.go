package doseresponse

import (
	"fmt"
	"sort"
	"strings"

	"bmdscreen/pkg/contracts/domain"
)

// ZeroControlPolicy decides the fate of plates that carry no control wells
type ZeroControlPolicy string

const (
	// RetainZeroControl keeps plates that cannot be evaluated
	RetainZeroControl ZeroControlPolicy = "retain"
	// ExcludeZeroControl drops plates that cannot be evaluated
	ExcludeZeroControl ZeroControlPolicy = "exclude"
)

// DefaultBackgroundThreshold is the control hit fraction above which a plate is dropped
const DefaultBackgroundThreshold = 0.5

// ParseZeroControlPolicy validates a configured policy name
func ParseZeroControlPolicy(s string) (ZeroControlPolicy, error) {
	switch p := ZeroControlPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RetainZeroControl, ExcludeZeroControl:
		return p, nil
	}
	return "", fmt.Errorf("unknown zero-control policy %q", s)
}

// PlateFilter removes plates with background toxicity in their control wells
type PlateFilter struct {
	ZeroControl ZeroControlPolicy
	Threshold   float64
}

// NewPlateFilter returns a filter with the default 50% threshold
func NewPlateFilter(policy ZeroControlPolicy) PlateFilter {
	return PlateFilter{ZeroControl: policy, Threshold: DefaultBackgroundThreshold}
}

// PlateDecision records how one plate was judged
type PlateDecision struct {
	PlateID  string `json:"plate_id"`
	Controls int    `json:"controls"`
	Hits     int    `json:"hits"`
	Dropped  bool   `json:"dropped"`
	Reason   string `json:"reason,omitempty"`
}

// Apply returns the observations on retained plates and one decision per
// plate in plate order. Control wells are the wells at concentration zero,
// counted whether or not they were scored. A plate is dropped when
// hits > Threshold x controls.
func (f PlateFilter) Apply(obs []domain.WellObservation) ([]domain.WellObservation, []PlateDecision) {
	type tally struct{ controls, hits int }
	plates := make(map[string]*tally)

	for _, o := range obs {
		t, ok := plates[o.PlateID]
		if !ok {
			t = &tally{}
			plates[o.PlateID] = t
		}
		if o.IsControl() {
			t.controls++
			if o.Value == domain.Affected {
				t.hits++
			}
		}
	}

	ids := make([]string, 0, len(plates))
	for id := range plates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dropped := make(map[string]bool)
	decisions := make([]PlateDecision, 0, len(ids))
	for _, id := range ids {
		t := plates[id]
		d := PlateDecision{PlateID: id, Controls: t.controls, Hits: t.hits}

		switch {
		case t.controls == 0:
			if f.ZeroControl == ExcludeZeroControl {
				d.Dropped = true
				d.Reason = "no control wells"
			}
		case float64(t.hits) > f.Threshold*float64(t.controls):
			d.Dropped = true
			d.Reason = fmt.Sprintf("%d of %d control wells affected", t.hits, t.controls)
		}

		if d.Dropped {
			dropped[id] = true
		}
		decisions = append(decisions, d)
	}

	if len(dropped) == 0 {
		kept := make([]domain.WellObservation, len(obs))
		copy(kept, obs)
		return kept, decisions
	}

	kept := make([]domain.WellObservation, 0, len(obs))
	for _, o := range obs {
		if !dropped[o.PlateID] {
			kept = append(kept, o)
		}
	}
	return kept, decisions
}
