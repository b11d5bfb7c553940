package domain

import (
	"fmt"
	"time"
)

// UnitKey identifies one independent (chemical, endpoint) screening unit
type UnitKey struct {
	ChemicalID string `json:"chemical_id"`
	Endpoint   string `json:"endpoint"`
}

// String returns "chemical/endpoint"
func (k UnitKey) String() string {
	return fmt.Sprintf("%s/%s", k.ChemicalID, k.Endpoint)
}

// ModelSelectFlag distinguishes why no unique model was selected
type ModelSelectFlag int

const (
	// ModelSelectNone is used when a unique model was found
	ModelSelectNone ModelSelectFlag = 0
	// ModelSelectPoorConvergence means the candidates failed to converge
	ModelSelectPoorConvergence ModelSelectFlag = 1
	// ModelSelectNoUniqueModel means the data was good but no model stood out
	ModelSelectNoUniqueModel ModelSelectFlag = 2
)

// FitOutcome is the record returned by the external model-fitting collaborator.
// The screening core never inspects the numerics beyond passing them on.
type FitOutcome struct {
	NoUniqueModelFound int                `json:"no_unique_model_found_flag"`
	ModelSelectFlag    ModelSelectFlag    `json:"model_select_flag"`
	SelectedModel      string             `json:"selected_model,omitempty"`
	Parameters         map[string]float64 `json:"parameters,omitempty"`
	BMD                *float64           `json:"bmd,omitempty"`
	BMDL               *float64           `json:"bmdl,omitempty"`
	BMDU               *float64           `json:"bmdu,omitempty"`
	Candidates         int                `json:"candidates"`
}

// UnitResult is the value produced by screening one unit. Results are
// collected by the batch runner and reduced once after all units finish.
type UnitResult struct {
	Key         UnitKey           `json:"key"`
	Flag        FeasibilityFlag   `json:"flag"`
	Groups      []DoseGroup       `json:"groups"`
	Table       DoseResponseTable `json:"table"`
	PValue      float64           `json:"p_value"`
	Correlation float64           `json:"correlation"`
	Reason      string            `json:"reason"`
	Fit         *FitOutcome       `json:"fit,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Err         error             `json:"-"`
}

// Failed reports whether the unit could not be screened
func (r UnitResult) Failed() bool {
	return r.Err != nil
}

// ErrorMessage returns the failure text, or "" for successful units
func (r UnitResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
