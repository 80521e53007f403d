package eps

import "fmt"

// Band identifies one of the vehicle-speed bands used to bucket the
// linearity analysis.
type Band int

const (
	Band0 Band = iota // 0 to 10 km/h
	Band1             // 10 to 30 km/h
	Band2             // 30 to 60 km/h

	NumBands = 3
)

// bandEdges holds the half-open [lo, hi) speed range of each band.
var bandEdges = [NumBands][2]float64{
	{0, 10},
	{10, 30},
	{30, 60},
}

// Bounds returns the half-open speed range [lo, hi) covered by b.
func (b Band) Bounds() (lo, hi float64) {
	return bandEdges[b][0], bandEdges[b][1]
}

func (b Band) String() string {
	if b < 0 || int(b) >= NumBands {
		return fmt.Sprintf("Band(%d)", int(b))
	}
	lo, hi := b.Bounds()
	return fmt.Sprintf("%g-%g km/h", lo, hi)
}

// BandOf returns the band containing speed, or false if speed lies outside
// [0, 60).
func BandOf(speed float64) (Band, bool) {
	for b := Band0; int(b) < NumBands; b++ {
		if lo, hi := b.Bounds(); speed >= lo && speed < hi {
			return b, true
		}
	}
	return 0, false
}

// Record is one denoised sample together with its buffer index.
type Record struct {
	Index  int
	Speed  float64
	Angle  float64
	Torque float64
}

// SplitBySpeed distributes records into the speed bands, keeping their
// order. Records outside every band are dropped.
func SplitBySpeed(records []Record) [NumBands][]Record {
	var bands [NumBands][]Record
	for _, r := range records {
		if b, ok := BandOf(r.Speed); ok {
			bands[b] = append(bands[b], r)
		}
	}
	return bands
}
