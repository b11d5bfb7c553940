package endpoints

import (
	"errors"
	"fmt"
)

// DefaultWindow is the number of samples summed on each side of a transition
const DefaultWindow = 3

// DefaultTransitions are the light-to-dark transition sample indices of the
// standard light photomotor protocol: four 30-sample phases followed by a
// dark tail, so series need at least 123 samples.
var DefaultTransitions = []int{29, 59, 89, 119}

// ErrWindowOutOfRange is returned when a transition window falls outside the series
var ErrWindowOutOfRange = errors.New("movement window out of range")

// MovementMetric is one derived behavioural endpoint value
type MovementMetric struct {
	Name  string
	Value float64
}

// DeriveMovement computes MOV_k and AUC_k for each transition t_k in series:
//
//	MOV_k = v[t+1] - v[t]
//	AUC_k = sum(v[t+1 .. t+width]) - sum(v[t-width+1 .. t])
//
// Metrics are returned as MOV1, AUC1, MOV2, AUC2, ... in transition order.
func DeriveMovement(series []float64, transitions []int, width int) ([]MovementMetric, error) {
	if width < 1 {
		return nil, fmt.Errorf("window width must be positive, got %d", width)
	}

	metrics := make([]MovementMetric, 0, 2*len(transitions))
	for i, t := range transitions {
		if t-width+1 < 0 || t+width >= len(series) {
			return nil, fmt.Errorf("%w: transition %d at sample %d needs [%d, %d] in a series of %d",
				ErrWindowOutOfRange, i+1, t, t-width+1, t+width, len(series))
		}

		var dark, light float64
		for j := 1; j <= width; j++ {
			dark += series[t+j]
		}
		for j := 0; j < width; j++ {
			light += series[t-j]
		}

		metrics = append(metrics,
			MovementMetric{Name: fmt.Sprintf("MOV%d", i+1), Value: series[t+1] - series[t]},
			MovementMetric{Name: fmt.Sprintf("AUC%d", i+1), Value: dark - light},
		)
	}
	return metrics, nil
}
