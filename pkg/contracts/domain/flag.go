package domain

// FeasibilityFlag describes whether and how reliably BMD modelling may proceed
// for one (chemical, endpoint) unit.
type FeasibilityFlag int

const (
	// FlagInsufficientDoses means fewer than three dose groups survived filtering
	FlagInsufficientDoses FeasibilityFlag = 0
	// FlagNoTrend means no (or a negative) dose-response trend
	FlagNoTrend FeasibilityFlag = 1
	// FlagGood means a significant increasing trend
	FlagGood FeasibilityFlag = 2
	// FlagSatisfactory means a trend of limited reliability
	FlagSatisfactory FeasibilityFlag = 3
	// FlagPoorResolution means a weak trend with poor resolution
	FlagPoorResolution FeasibilityFlag = 4
	// FlagTrendReverses means the trend reverses on closer inspection
	FlagTrendReverses FeasibilityFlag = 5
)

// String returns a short label for reports
func (f FeasibilityFlag) String() string {
	switch f {
	case FlagInsufficientDoses:
		return "insufficient_dose_groups"
	case FlagNoTrend:
		return "no_trend"
	case FlagGood:
		return "good"
	case FlagSatisfactory:
		return "satisfactory"
	case FlagPoorResolution:
		return "poor_resolution"
	case FlagTrendReverses:
		return "trend_reverses"
	default:
		return "unknown"
	}
}

// RequiresFit reports whether the unit is routed to model fitting
func (f FeasibilityFlag) RequiresFit() bool {
	return f != FlagInsufficientDoses && f != FlagNoTrend
}

// IsValid reports whether the flag is one of the six defined codes
func (f FeasibilityFlag) IsValid() bool {
	return f >= FlagInsufficientDoses && f <= FlagTrendReverses
}
