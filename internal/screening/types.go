package screening

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"bmdscreen/internal/feasibility"
	"bmdscreen/pkg/contracts/domain"
)

// Selection chooses which chemicals a batch screens. It is supplied by the
// caller: either every chemical in the input or a single one.
type Selection struct {
	All        bool   `json:"all"`
	ChemicalID string `json:"chemical_id,omitempty"`
}

// SelectAll screens every chemical present in the input
func SelectAll() Selection {
	return Selection{All: true}
}

// SelectChemical screens a single chemical
func SelectChemical(id string) Selection {
	return Selection{ChemicalID: id}
}

// Validate requires exactly one of All or ChemicalID
func (s Selection) Validate() error {
	if s.All == (s.ChemicalID != "") {
		return fmt.Errorf("selection must set exactly one of all or chemical_id")
	}
	return nil
}

// String describes the selection for logs and run records
func (s Selection) String() string {
	if s.All {
		return "all"
	}
	return "chemical:" + s.ChemicalID
}

// Reporter receives each unit result during the single-writer reduction.
// Calls are never concurrent.
type Reporter interface {
	// ReportNoFit receives units flagged 0 or 1
	ReportNoFit(ctx context.Context, r domain.UnitResult) error
	// ReportFit receives units flagged 2 to 5, with the fit outcome attached
	ReportFit(ctx context.Context, r domain.UnitResult) error
}

// Summary counts unit outcomes in a batch
type Summary struct {
	Units  int                            `json:"units"`
	Failed int                            `json:"failed"`
	Fitted int                            `json:"fitted"`
	ByFlag map[domain.FeasibilityFlag]int `json:"by_flag"`
}

// Summarize counts results per flag
func Summarize(results []domain.UnitResult) Summary {
	s := Summary{Units: len(results), ByFlag: make(map[domain.FeasibilityFlag]int)}
	for _, r := range results {
		if r.Failed() {
			s.Failed++
			continue
		}
		s.ByFlag[r.Flag]++
		if r.Fit != nil {
			s.Fitted++
		}
	}
	return s
}

// String renders the summary as "units=N failed=N fitted=N flag0=N ..."
func (s Summary) String() string {
	flags := make([]int, 0, len(s.ByFlag))
	for f := range s.ByFlag {
		flags = append(flags, int(f))
	}
	sort.Ints(flags)

	var b strings.Builder
	fmt.Fprintf(&b, "units=%d failed=%d fitted=%d", s.Units, s.Failed, s.Fitted)
	for _, f := range flags {
		fmt.Fprintf(&b, " %s=%d", domain.FeasibilityFlag(f), s.ByFlag[domain.FeasibilityFlag(f)])
	}
	return b.String()
}

// Batch is the reduced outcome of one run
type Batch struct {
	RunID             string              `json:"run_id"`
	StartedAt         time.Time           `json:"started_at"`
	FinishedAt        time.Time           `json:"finished_at"`
	Variant           string              `json:"variant"`
	Policy            feasibility.Policy  `json:"policy"`
	ZeroControlPolicy string              `json:"zero_control_policy"`
	Selection         Selection           `json:"selection"`
	Results           []domain.UnitResult `json:"results"`
	Summary           Summary             `json:"summary"`
}
