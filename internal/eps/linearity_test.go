package eps

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func records(angles, torques []float64) []Record {
	out := make([]Record, len(angles))
	for i := range angles {
		out[i] = Record{Index: i, Speed: 5, Angle: angles[i], Torque: torques[i]}
	}
	return out
}

func TestLinearityPoints(t *testing.T) {
	tests := []struct {
		name      string
		angles    []float64
		torques   []float64
		threshold int
		want      []LinearityPoint
	}{
		{
			name:      "one closed run",
			angles:    []float64{-70, -65, 10},
			torques:   []float64{2500, 2600, 2550},
			threshold: DefaultThreshold,
			want:      []LinearityPoint{{Interval: 2, Ratio: (2500.0 + 2600.0) / (-70.0 - 65.0)}},
		},
		{
			name:      "run open at end is not emitted",
			angles:    []float64{-70, -65, -61},
			torques:   []float64{1, 2, 3},
			threshold: DefaultThreshold,
			want:      []LinearityPoint{},
		},
		{
			name:      "closed run then open run",
			angles:    []float64{-80, 0, -90, -90},
			torques:   []float64{8, 0, 1, 1},
			threshold: DefaultThreshold,
			want:      []LinearityPoint{{Interval: 1, Ratio: 8.0 / -80.0}},
		},
		{
			name:      "threshold is inclusive",
			angles:    []float64{-60, -59},
			torques:   []float64{6, 0},
			threshold: DefaultThreshold,
			want:      []LinearityPoint{{Interval: 1, Ratio: 6.0 / -60.0}},
		},
		{
			name:      "above threshold without run is ignored",
			angles:    []float64{0, 10, -100, 20, 30},
			torques:   []float64{1, 1, 50, 1, 1},
			threshold: DefaultThreshold,
			want:      []LinearityPoint{{Interval: 1, Ratio: -0.5}},
		},
		{
			name:      "two runs",
			angles:    []float64{-100, -100, 0, -200, 5},
			torques:   []float64{10, 30, 0, 40, 0},
			threshold: DefaultThreshold,
			want: []LinearityPoint{
				{Interval: 2, Ratio: 40.0 / -200.0},
				{Interval: 1, Ratio: 40.0 / -200.0},
			},
		},
		{
			name:      "run with zero angle sum emits nothing",
			angles:    []float64{0, 0, 5},
			torques:   []float64{3, 3, 3},
			threshold: 0,
			want:      []LinearityPoint{},
		},
		{
			name:      "custom threshold",
			angles:    []float64{-20, -30, -5},
			torques:   []float64{2, 4, 0},
			threshold: -10,
			want:      []LinearityPoint{{Interval: 2, Ratio: 6.0 / -50.0}},
		},
		{
			name:      "empty",
			threshold: DefaultThreshold,
			want:      []LinearityPoint{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LinearityPoints(records(tt.angles, tt.torques), tt.threshold)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("LinearityPoints mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLinearityPointsNRun(t *testing.T) {
	for n := 1; n <= 20; n++ {
		angles := make([]float64, 0, n+1)
		torques := make([]float64, 0, n+1)
		var angleSum, torqueSum float64
		for i := 0; i < n; i++ {
			a := -61 - float64(i)
			tq := 2400 + float64(10*i)
			angles = append(angles, a)
			torques = append(torques, tq)
			angleSum += a
			torqueSum += tq
		}
		angles = append(angles, 0)
		torques = append(torques, 2500)

		got := LinearityPoints(records(angles, torques), DefaultThreshold)
		want := []LinearityPoint{{Interval: n, Ratio: torqueSum / angleSum}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("n=%d mismatch (-want +got):\n%s", n, diff)
		}
	}
}
