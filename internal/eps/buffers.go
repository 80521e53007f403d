package eps

import (
	"fmt"
	"slices"
)

// DrainAll is the Dequeue count that clears every channel.
const DrainAll = -1

// ChannelBuffers holds the four sensor channels as a struct of arrays.
// Speed, angle and torque are only ever appended together so their lengths
// stay equal; current is appended only for samples that carry it.
//
// ChannelBuffers is not safe for concurrent use; Processor serialises access.
type ChannelBuffers struct {
	speed   []float64
	angle   []float64
	torque  []float64
	current []float64
}

// Signals is a copy of the channel contents.
type Signals struct {
	Speed   []float64 `json:"speed"`
	Angle   []float64 `json:"angle"`
	Torque  []float64 `json:"torque"`
	Current []float64 `json:"current"`
}

// Append adds one validated sample to the channels in the order speed,
// angle, torque, current.
func (b *ChannelBuffers) Append(s SensorSample) {
	b.speed = append(b.speed, s.Speed)
	b.angle = append(b.angle, s.Angle)
	b.torque = append(b.torque, s.Torque)
	if s.HasCurrent {
		b.current = append(b.current, s.Current)
	}
}

// Len returns the number of samples in the speed/angle/torque channels.
func (b *ChannelBuffers) Len() int {
	return len(b.speed)
}

// CurrentLen returns the number of samples in the current channel.
func (b *ChannelBuffers) CurrentLen() int {
	return len(b.current)
}

// Dequeue drains the channels. DrainAll empties every channel. Any other
// count is applied to each channel on its own: a channel holding more than
// count samples loses its first count samples, a channel holding count or
// fewer is left as it is.
func (b *ChannelBuffers) Dequeue(count int) error {
	if count < DrainAll {
		return fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if count == DrainAll {
		b.Reset()
		return nil
	}
	b.speed = dropFront(b.speed, count)
	b.angle = dropFront(b.angle, count)
	b.torque = dropFront(b.torque, count)
	b.current = dropFront(b.current, count)
	return nil
}

func dropFront(buf []float64, count int) []float64 {
	if len(buf) <= count {
		return buf
	}
	return slices.Clone(buf[count:])
}

// Reset clears every channel.
func (b *ChannelBuffers) Reset() {
	b.speed = nil
	b.angle = nil
	b.torque = nil
	b.current = nil
}

// Snapshot returns a copy of all four channels.
func (b *ChannelBuffers) Snapshot() Signals {
	return Signals{
		Speed:   cloneOrEmpty(b.speed),
		Angle:   cloneOrEmpty(b.angle),
		Torque:  cloneOrEmpty(b.torque),
		Current: cloneOrEmpty(b.current),
	}
}

// window copies the speed/angle/torque samples in [start, end).
func (b *ChannelBuffers) window(start, end int) (speed, angle, torque []float64) {
	return slices.Clone(b.speed[start:end]), slices.Clone(b.angle[start:end]), slices.Clone(b.torque[start:end])
}

func cloneOrEmpty(s []float64) []float64 {
	if len(s) == 0 {
		return []float64{}
	}
	return slices.Clone(s)
}
