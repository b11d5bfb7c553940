// Package endpoints derives composite endpoints from primitive per-well scores.
//
// A composite endpoint is a named, ordered list of component endpoints. For
// each well the composite is the sum of the components that were scored; a
// well on which every component is missing yields a missing composite rather
// than zero. Sums above one are binarised before they are used as a response.
//
// The component lists differ between dataset variants (standard, brai, dnc)
// and are selected explicitly through the screening configuration:
//
//	cat, err := endpoints.NewCatalogue(endpoints.VariantBRAI)
//	all := endpoints.Derive(observations, cat)
//
// The package also derives behavioural MOV and AUC metrics from movement
// series recorded across light/dark transitions (see DeriveMovement).
package endpoints
