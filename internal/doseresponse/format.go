package doseresponse

import "bmdscreen/pkg/contracts/domain"

// Format projects groups onto the canonical table with a fresh zero-based
// index. TotalNum is the scored well count, not the raw well count.
func Format(groups []domain.DoseGroup) domain.DoseResponseTable {
	rows := make([]domain.DoseResponseRow, len(groups))
	for i, g := range groups {
		rows[i] = domain.DoseResponseRow{
			Index:       i,
			Dose:        g.Concentration,
			NumAffected: g.NumAffected,
			TotalNum:    g.NumNonNA,
		}
	}
	return domain.DoseResponseTable{Rows: rows}
}
