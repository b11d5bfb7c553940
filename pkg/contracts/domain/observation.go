package domain

import (
	"fmt"
	"strings"
)

// Value is the tri-state score recorded for one well and endpoint.
type Value int8

const (
	// Missing marks a well that was not scored (dead, lost or excluded upstream)
	Missing Value = -1
	// Unaffected marks a well where the abnormality was not observed
	Unaffected Value = 0
	// Affected marks a well where the abnormality was observed
	Affected Value = 1
)

// IsMissing reports whether the value carries no observation
func (v Value) IsMissing() bool {
	return v == Missing
}

// String returns the CSV representation of the value ("0", "1" or "NA")
func (v Value) String() string {
	switch v {
	case Unaffected:
		return "0"
	case Affected:
		return "1"
	default:
		return "NA"
	}
}

// ParseValue converts a raw cell into a Value. Empty cells, "NA", "NaN"
// and "null" are all treated as missing.
func ParseValue(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToUpper(s) {
	case "", "NA", "NAN", "NULL", "NONE":
		return Missing, nil
	case "0", "0.0":
		return Unaffected, nil
	case "1", "1.0":
		return Affected, nil
	}
	return Missing, fmt.Errorf("invalid well value %q: expected 0, 1 or NA", raw)
}

// WellObservation is one binary score for one well, endpoint and concentration.
// Observations are read once per batch and never mutated afterwards.
type WellObservation struct {
	ChemicalID    string  `json:"chemical_id" validate:"required"`
	Concentration float64 `json:"concentration" validate:"gte=0"`
	PlateID       string  `json:"plate_id" validate:"required"`
	WellID        string  `json:"well_id" validate:"required"`
	Endpoint      string  `json:"endpoint" validate:"required,endpoint_name"`
	Value         Value   `json:"value" validate:"oneof=-1 0 1"`
}

// WellKey identifies a physical well independently of the endpoint scored on it
type WellKey struct {
	ChemicalID    string
	Concentration float64
	PlateID       string
	WellID        string
}

// Key returns the well identity of the observation
func (o WellObservation) Key() WellKey {
	return WellKey{
		ChemicalID:    o.ChemicalID,
		Concentration: o.Concentration,
		PlateID:       o.PlateID,
		WellID:        o.WellID,
	}
}

// IsControl reports whether the observation belongs to a negative-control well
func (o WellObservation) IsControl() bool {
	return o.Concentration == 0
}
