package eps

// DefaultThreshold is the angle at or below which samples are integrated.
const DefaultThreshold = -60

// LinearityPoint is the torque-to-angle ratio accumulated over one run of
// consecutive samples at or below the angle threshold.
type LinearityPoint struct {
	Interval int     `json:"interval"`
	Ratio    float64 `json:"ratio"`
}

// BandPoints holds the linearity points extracted for each speed band.
type BandPoints [NumBands][]LinearityPoint

// LinearityPoints scans records in order and integrates angle and torque
// while the angle stays at or below threshold. The first sample above the
// threshold closes the run and emits (run length, torque sum / angle sum).
// A run still open when the records end is discarded.
func LinearityPoints(records []Record, threshold int) []LinearityPoint {
	points := make([]LinearityPoint, 0)

	var (
		interval  int
		angleSum  float64
		torqueSum float64
	)
	thv := float64(threshold)
	for _, r := range records {
		if r.Angle <= thv {
			interval++
			angleSum += r.Angle
			torqueSum += r.Torque
			continue
		}
		if angleSum != 0 {
			points = append(points, LinearityPoint{Interval: interval, Ratio: torqueSum / angleSum})
			interval = 0
			angleSum = 0
			torqueSum = 0
		}
	}
	return points
}
