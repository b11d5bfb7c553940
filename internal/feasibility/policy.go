package feasibility

import (
	"fmt"
	"strings"
)

// TrendStrategy selects the primary trend test
type TrendStrategy string

const (
	// AveragePair compares the mean response of the two highest doses
	// against the two lowest.
	AveragePair TrendStrategy = "average_pair"
	// Spearman requires a rank correlation of at least MinSpearman between
	// log dose and response.
	Spearman TrendStrategy = "spearman"
)

// BucketTable selects the p-value buckets of the significance test
type BucketTable string

const (
	// ThreeBucket maps p < 0.05 to good, p < 0.32 to satisfactory, else no trend
	ThreeBucket BucketTable = "three_bucket"
	// FourBucket adds p < 0.62 as poor resolution before falling back to no trend
	FourBucket BucketTable = "four_bucket"
)

// Decision thresholds
const (
	Epsilon            = 1e-15
	MinSpearman        = 0.2
	GoodPValue         = 0.05
	SatisfactoryPValue = 0.32
	PoorPValue         = 0.62
	MinDoseGroups      = 3
)

// Policy names the classifier variant in use
type Policy struct {
	Trend   TrendStrategy `json:"trend_strategy"`
	Buckets BucketTable   `json:"bucket_table"`
}

// DefaultPolicy returns average_pair with the four-bucket table
func DefaultPolicy() Policy {
	return Policy{Trend: AveragePair, Buckets: FourBucket}
}

// ParsePolicy validates configured strategy and bucket names
func ParsePolicy(trend, buckets string) (Policy, error) {
	p := Policy{
		Trend:   TrendStrategy(strings.ToLower(strings.TrimSpace(trend))),
		Buckets: BucketTable(strings.ToLower(strings.TrimSpace(buckets))),
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate rejects unknown strategies and tables
func (p Policy) Validate() error {
	switch p.Trend {
	case AveragePair, Spearman:
	default:
		return fmt.Errorf("unknown trend strategy %q", p.Trend)
	}
	switch p.Buckets {
	case ThreeBucket, FourBucket:
	default:
		return fmt.Errorf("unknown bucket table %q", p.Buckets)
	}
	return nil
}

// String returns "trend/buckets", the form recorded with each run
func (p Policy) String() string {
	return fmt.Sprintf("%s/%s", p.Trend, p.Buckets)
}
