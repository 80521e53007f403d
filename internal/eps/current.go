package eps

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CurrentStats summarises the current channel.
type CurrentStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// CurrentConsumption returns the min, max and mean of samples. It returns
// ErrEmptyInput when there are none.
func CurrentConsumption(samples []float64) (CurrentStats, error) {
	if len(samples) == 0 {
		return CurrentStats{}, ErrEmptyInput
	}
	return CurrentStats{
		Min:  floats.Min(samples),
		Max:  floats.Max(samples),
		Mean: stat.Mean(samples, nil),
	}, nil
}
