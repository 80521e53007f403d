package eps

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// spikeWindow is the median filter kernel size.
const spikeWindow = 3

// RemoveSpikeNoise applies a centred median filter of width 3. Samples
// beyond either edge are taken as zero, so the output has the same length
// as the input.
func RemoveSpikeNoise(signal []float64) []float64 {
	out := make([]float64, len(signal))
	half := spikeWindow / 2
	for i := range signal {
		var w [spikeWindow]float64
		for k := -half; k <= half; k++ {
			if j := i + k; j >= 0 && j < len(signal) {
				w[k+half] = signal[j]
			}
		}
		out[i] = median3(w[0], w[1], w[2])
	}
	return out
}

func median3(a, b, c float64) float64 {
	return math.Max(math.Min(a, b), math.Min(math.Max(a, b), c))
}

// RemoveDCOffset subtracts the arithmetic mean from every sample.
func RemoveDCOffset(signal []float64) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}
	copy(out, signal)
	floats.AddConst(-stat.Mean(signal, nil), out)
	return out
}
