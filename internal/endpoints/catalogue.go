package endpoints

import (
	"fmt"
	"slices"
	"strings"
)

// Variant names a dataset-specific set of composite definitions
type Variant string

const (
	VariantStandard Variant = "standard"
	// VariantBRAI adds NC24 to the 24 hpf composites
	VariantBRAI Variant = "brai"
	// VariantDNC adds DNC_ to the 120 hpf composites
	VariantDNC Variant = "dnc"
)

// ParseVariant validates a configured variant name
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantStandard, VariantBRAI, VariantDNC:
		return v, nil
	}
	return "", fmt.Errorf("unknown endpoint variant %q", s)
}

// Definition describes one composite endpoint
type Definition struct {
	Name       string
	Components []string
}

// Catalogue is the ordered set of composite definitions for one variant
type Catalogue struct {
	variant    Variant
	composites []Definition
	byName     map[string]int
}

var (
	any24Base = []string{"MO24", "DP24", "SM24"}

	any120Base = []string{
		"MORT", "YSE_", "AXIS", "EYE_", "SNOU", "JAW_", "OTIC", "PE__", "BRAI",
		"SOMI", "PFIN", "CFIN", "PIG_", "CIRC", "TRUN", "SWIM", "NC__", "TR__",
	}

	fixedComposites = []Definition{
		{Name: "TOT_MORT", Components: []string{"MO24", "MORT"}},
		{Name: "BRN_", Components: []string{"BRAI", "OTIC", "PFIN"}},
		{Name: "CRAN", Components: []string{"EYE_", "SNOU", "JAW_"}},
		{Name: "EDEM", Components: []string{"YSE_", "PE__"}},
		{Name: "LTRK", Components: []string{"TRUN", "CFIN"}},
		{Name: "MUSC", Components: []string{"CIRC", "SWIM", "SOMI"}},
		{Name: "SKIN", Components: []string{"PIG_"}},
		{Name: "TCHR", Components: []string{"TR__"}},
	}
)

// NewCatalogue builds the composite definitions for a variant
func NewCatalogue(v Variant) (*Catalogue, error) {
	any24 := slices.Clone(any24Base)
	switch v {
	case VariantStandard, VariantDNC:
	case VariantBRAI:
		any24 = append(any24, "NC24")
	default:
		return nil, fmt.Errorf("unknown endpoint variant %q", v)
	}

	any120 := append(slices.Clone(any120Base), any24...)
	if v == VariantDNC {
		any120 = append(any120, "DNC_")
	}

	allButMort := make([]string, 0, len(any120))
	for _, c := range any120 {
		if c != "MO24" && c != "MORT" {
			allButMort = append(allButMort, c)
		}
	}

	defs := []Definition{
		{Name: "ANY24", Components: any24},
		{Name: "ANY120", Components: any120},
	}
	defs = append(defs, fixedComposites[0])
	defs = append(defs, Definition{Name: "ALL_BUT_MORT", Components: allButMort})
	for _, d := range fixedComposites[1:] {
		defs = append(defs, Definition{Name: d.Name, Components: slices.Clone(d.Components)})
	}

	c := &Catalogue{variant: v, composites: defs, byName: make(map[string]int, len(defs))}
	for i, d := range defs {
		c.byName[d.Name] = i
	}
	return c, nil
}

// Variant returns the variant the catalogue was built for
func (c *Catalogue) Variant() Variant {
	return c.variant
}

// Composites returns the definitions in derivation order
func (c *Catalogue) Composites() []Definition {
	out := make([]Definition, len(c.composites))
	for i, d := range c.composites {
		out[i] = Definition{Name: d.Name, Components: slices.Clone(d.Components)}
	}
	return out
}

// Lookup returns the composite definition named name
func (c *Catalogue) Lookup(name string) (Definition, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Definition{}, false
	}
	d := c.composites[i]
	return Definition{Name: d.Name, Components: slices.Clone(d.Components)}, true
}

// IsComposite reports whether name is derived rather than observed
func (c *Catalogue) IsComposite(name string) bool {
	_, ok := c.byName[name]
	return ok
}
