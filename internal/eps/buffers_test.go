package eps

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fill(b *ChannelBuffers, n, withCurrent int) {
	for i := 0; i < n; i++ {
		s := SensorSample{Speed: float64(i), Angle: float64(-i), Torque: 2300 + float64(i)}
		if i < withCurrent {
			s.Current = float64(100 * i)
			s.HasCurrent = true
		}
		b.Append(s)
	}
}

func TestChannelBuffersAppend(t *testing.T) {
	var b ChannelBuffers
	fill(&b, 4, 0)
	if b.Len() != 4 || b.CurrentLen() != 0 {
		t.Fatalf("Len=%d CurrentLen=%d, want 4 and 0", b.Len(), b.CurrentLen())
	}

	want := Signals{
		Speed:   []float64{0, 1, 2, 3},
		Angle:   []float64{0, -1, -2, -3},
		Torque:  []float64{2300, 2301, 2302, 2303},
		Current: []float64{},
	}
	if diff := cmp.Diff(want, b.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelBuffersSnapshotIsCopy(t *testing.T) {
	var b ChannelBuffers
	fill(&b, 2, 2)
	snap := b.Snapshot()
	snap.Speed[0] = 99
	snap.Current[0] = 99
	if again := b.Snapshot(); again.Speed[0] != 0 || again.Current[0] != 0 {
		t.Errorf("mutating a snapshot changed the buffers: %+v", again)
	}
}

func TestChannelBuffersDequeueAll(t *testing.T) {
	var b ChannelBuffers
	fill(&b, 5, 5)
	if err := b.Dequeue(DrainAll); err != nil {
		t.Fatalf("Dequeue(DrainAll): %v", err)
	}
	if b.Len() != 0 || b.CurrentLen() != 0 {
		t.Errorf("after DrainAll Len=%d CurrentLen=%d, want 0", b.Len(), b.CurrentLen())
	}
}

func TestChannelBuffersDequeuePerChannel(t *testing.T) {
	tests := []struct {
		name        string
		samples     int
		withCurrent int
		count       int
		wantSpeed   []float64
		wantCurrent []float64
	}{
		{
			name:        "both channels longer than count",
			samples:     5,
			withCurrent: 5,
			count:       2,
			wantSpeed:   []float64{2, 3, 4},
			wantCurrent: []float64{200, 300, 400},
		},
		{
			name:        "current shorter than count is kept",
			samples:     5,
			withCurrent: 2,
			count:       3,
			wantSpeed:   []float64{3, 4},
			wantCurrent: []float64{0, 100},
		},
		{
			name:        "length equal to count is kept",
			samples:     3,
			withCurrent: 3,
			count:       3,
			wantSpeed:   []float64{0, 1, 2},
			wantCurrent: []float64{0, 100, 200},
		},
		{
			name:        "count larger than every channel",
			samples:     2,
			withCurrent: 0,
			count:       10,
			wantSpeed:   []float64{0, 1},
			wantCurrent: []float64{},
		},
		{
			name:        "zero count",
			samples:     2,
			withCurrent: 1,
			count:       0,
			wantSpeed:   []float64{0, 1},
			wantCurrent: []float64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ChannelBuffers
			fill(&b, tt.samples, tt.withCurrent)
			if err := b.Dequeue(tt.count); err != nil {
				t.Fatalf("Dequeue(%d): %v", tt.count, err)
			}
			snap := b.Snapshot()
			if diff := cmp.Diff(tt.wantSpeed, snap.Speed); diff != "" {
				t.Errorf("speed mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCurrent, snap.Current); diff != "" {
				t.Errorf("current mismatch (-want +got):\n%s", diff)
			}
			if len(snap.Angle) != len(snap.Speed) || len(snap.Torque) != len(snap.Speed) {
				t.Errorf("channel lengths diverged: speed=%d angle=%d torque=%d",
					len(snap.Speed), len(snap.Angle), len(snap.Torque))
			}
		})
	}
}

func TestChannelBuffersDequeueInvalidCount(t *testing.T) {
	var b ChannelBuffers
	fill(&b, 3, 3)
	if err := b.Dequeue(-2); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("Dequeue(-2) error = %v, want ErrInvalidCount", err)
	}
	if b.Len() != 3 || b.CurrentLen() != 3 {
		t.Errorf("buffers changed after invalid dequeue: Len=%d CurrentLen=%d", b.Len(), b.CurrentLen())
	}
}
