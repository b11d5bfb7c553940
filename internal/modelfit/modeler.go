// Package modelfit connects screening to the external dose-response model
// fitting collaborator. The screening core hands over the canonical table and
// passes the selection record on to reporting without inspecting numerics.
package modelfit

import (
	"context"

	"bmdscreen/pkg/contracts/domain"
)

// CandidateModel is one fitted model returned by the collaborator
type CandidateModel struct {
	Name       string             `json:"name"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	AIC        float64            `json:"aic"`
	Converged  bool               `json:"converged"`
	BMD        *float64           `json:"bmd,omitempty"`
	BMDL       *float64           `json:"bmdl,omitempty"`
	BMDU       *float64           `json:"bmdu,omitempty"`
}

// Modeler fits candidate models to a unit's table and selects among them
type Modeler interface {
	Fit(ctx context.Context, key domain.UnitKey, table domain.DoseResponseTable) ([]CandidateModel, error)
	Select(ctx context.Context, key domain.UnitKey, candidates []CandidateModel) (domain.FitOutcome, error)
}

// Disabled is used when no fitting executable is configured. Every unit is
// reported as not fitted so runs without a fitter still complete.
type Disabled struct{}

// Fit returns no candidates
func (Disabled) Fit(context.Context, domain.UnitKey, domain.DoseResponseTable) ([]CandidateModel, error) {
	return nil, nil
}

// Select marks the unit as having no unique model due to absent convergence
func (Disabled) Select(_ context.Context, _ domain.UnitKey, candidates []CandidateModel) (domain.FitOutcome, error) {
	return domain.FitOutcome{
		NoUniqueModelFound: 1,
		ModelSelectFlag:    domain.ModelSelectPoorConvergence,
		Candidates:         len(candidates),
	}, nil
}
