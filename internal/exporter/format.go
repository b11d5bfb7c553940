package exporter

import (
	"math"
	"strconv"
)

// formatFloat renders f with the shortest exact representation, or "NA"
// for NaN and infinities.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "NA"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatOptional renders a nil pointer as "NA"
func formatOptional(f *float64) string {
	if f == nil {
		return "NA"
	}
	return formatFloat(*f)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
