// Package eps implements the EPS signal engine: telegram ingestion into
// synchronised channel buffers, spike and DC-offset removal, speed band
// segmentation, threshold-gated linearity extraction and the least-squares
// fit over the resulting points.
package eps

import (
	"fmt"
	"sync"

	"github.com/banshee-data/eps.report/internal/monitoring"
)

// Processor owns the channel buffers and runs the linearity pipeline over
// them. Buffer mutations are serialised; readers work on copies and never
// observe a buffer mid-mutation.
type Processor struct {
	mu        sync.RWMutex
	buf       ChannelBuffers
	format    TelegramFormat
	threshold int
}

// NewProcessor creates a Processor that accepts telegrams in format and
// integrates angles at or below threshold.
func NewProcessor(format TelegramFormat, threshold int) (*Processor, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported telegram format %d", int(format))
	}
	return &Processor{format: format, threshold: threshold}, nil
}

// Format returns the telegram format the processor accepts.
func (p *Processor) Format() TelegramFormat { return p.format }

// Threshold returns the angle threshold used for linearity extraction.
func (p *Processor) Threshold() int { return p.threshold }

// Enqueue parses line and appends the sample to the buffers. Malformed or
// out-of-range telegrams are logged and dropped with the buffers untouched;
// ok is false in that case.
func (p *Processor) Enqueue(line string) (SensorSample, bool) {
	s, err := ParseTelegram(line, p.format)
	if err != nil {
		monitoring.Logf("eps: dropped telegram %q: %v", line, err)
		return SensorSample{}, false
	}

	p.mu.Lock()
	p.buf.Append(s)
	p.mu.Unlock()
	return s, true
}

// Dequeue drains the buffers; see ChannelBuffers.Dequeue.
func (p *Processor) Dequeue(count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Dequeue(count)
}

// Reset clears every buffer.
func (p *Processor) Reset() {
	p.mu.Lock()
	p.buf.Reset()
	p.mu.Unlock()
}

// Len returns the number of buffered samples.
func (p *Processor) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.buf.Len()
}

// RawSignal returns a copy of the buffered channels.
func (p *Processor) RawSignal() Signals {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.buf.Snapshot()
}

// RefinedSignal returns the buffered channels with spikes removed from each.
func (p *Processor) RefinedSignal() Signals {
	s := p.RawSignal()
	return Signals{
		Speed:   RemoveSpikeNoise(s.Speed),
		Angle:   RemoveSpikeNoise(s.Angle),
		Torque:  RemoveSpikeNoise(s.Torque),
		Current: RemoveSpikeNoise(s.Current),
	}
}

// Process runs the pipeline over the samples in [start, end) and returns
// the linearity points of every speed band. It reports false when the range
// does not fit the buffered samples.
func (p *Processor) Process(start, end int) (BandPoints, bool) {
	p.mu.RLock()
	if start < 0 || start > end || end > p.buf.Len() {
		p.mu.RUnlock()
		return BandPoints{}, false
	}
	speed, angle, torque := p.buf.window(start, end)
	p.mu.RUnlock()

	speed = RemoveSpikeNoise(speed)
	angle = RemoveSpikeNoise(angle)
	torque = RemoveDCOffset(RemoveSpikeNoise(torque))

	records := make([]Record, len(speed))
	for i := range records {
		records[i] = Record{
			Index:  start + i,
			Speed:  speed[i],
			Angle:  angle[i],
			Torque: torque[i],
		}
	}

	var out BandPoints
	for b, band := range SplitBySpeed(records) {
		out[b] = LinearityPoints(band, p.threshold)
	}
	return out, true
}

// CurrentConsumption returns min, max and mean of the buffered current
// samples, or ErrEmptyInput when none are buffered.
func (p *Processor) CurrentConsumption() (CurrentStats, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return CurrentConsumption(p.buf.current)
}
