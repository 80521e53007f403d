// Package evaluator runs the periodic linearity evaluation. It is the only
// writer to the engine's buffers in the daemon: telegrams arrive on a
// bounded channel and evaluation runs on a clock tick in the same
// goroutine.
package evaluator

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/eps.report/internal/eps"
	"github.com/banshee-data/eps.report/internal/monitoring"
	"github.com/banshee-data/eps.report/internal/timeutil"
)

const (
	DefaultInterval    = time.Second
	DefaultRefreshRate = 500
)

// Store archives what the evaluator sees. A nil Store disables archiving.
//
// RecordDrain is called once the buffers have been drained, after every
// telegram they held has gone through RecordTelegrams.
type Store interface {
	RecordTelegrams(batch []eps.Telegram) error
	RecordDrain(points eps.BandPoints) error
}

// Options tunes an Evaluator. Zero values select the defaults.
type Options struct {
	// Interval between evaluations.
	Interval time.Duration
	// RefreshRate is the buffered sample count at which new points are
	// moved to history and the buffers are drained.
	RefreshRate int
	// DisplayJitter adds a randomised demo slope to each band result.
	DisplayJitter bool

	Clock timeutil.Clock
	Rand  *rand.Rand
}

// BandResult is the evaluation of one speed band.
type BandResult struct {
	Band  eps.Band `json:"band"`
	Label string   `json:"label"`
	// Points is the accumulated history followed by the points extracted
	// from the current buffers.
	Points     []eps.LinearityPoint `json:"points"`
	Regression *eps.Regression      `json:"regression,omitempty"`
	// DisplaySlope is the jittered demo slope; never an estimate.
	DisplaySlope *float64 `json:"display_slope,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Result is a snapshot published after each evaluation.
type Result struct {
	EvaluatedAt time.Time                `json:"evaluated_at"`
	Samples     int                      `json:"samples"`
	Drained     bool                     `json:"drained"`
	Bands       [eps.NumBands]BandResult `json:"bands"`
}

type Evaluator struct {
	proc  *eps.Processor
	store Store
	opts  Options
	clock timeutil.Clock
	rng   *rand.Rand

	enabled atomic.Bool

	// Accepted telegrams wait in pending until the next flush so ingestion
	// never blocks on storage.
	pendingMu sync.Mutex
	pending   []eps.Telegram
	flushMu   sync.Mutex

	// mu serialises evaluation with Reset and LoadHistory and guards the
	// fields below.
	mu      sync.Mutex
	history eps.BandPoints
	latest  *Result
}

// New returns an enabled Evaluator over proc.
func New(proc *eps.Processor, opts Options, store Store) *Evaluator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = DefaultRefreshRate
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	e := &Evaluator{
		proc:  proc,
		store: store,
		opts:  opts,
		clock: clock,
		rng:   rng,
	}
	e.enabled.Store(true)
	return e
}

// Processor returns the engine the evaluator drives.
func (e *Evaluator) Processor() *eps.Processor { return e.proc }

// Run ingests lines and evaluates on every tick until ctx is done. A closed
// lines channel stops ingestion but not evaluation.
func (e *Evaluator) Run(ctx context.Context, lines <-chan string) error {
	ticker := e.clock.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Flush()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				monitoring.Logf("evaluator: telegram source closed")
				lines = nil
				continue
			}
			e.Ingest(line)
		case <-ticker.C():
			if !e.enabled.Load() {
				e.Flush()
				continue
			}
			e.EvaluateOnce()
		}
	}
}

// Ingest enqueues one telegram and queues it for archiving when accepted.
func (e *Evaluator) Ingest(line string) bool {
	s, ok := e.proc.Enqueue(line)
	if !ok {
		return false
	}
	if e.store != nil {
		e.pendingMu.Lock()
		e.pending = append(e.pending, eps.Telegram{ReceivedAt: e.clock.Now(), Raw: line, Sample: s})
		e.pendingMu.Unlock()
	}
	return true
}

// Flush archives the telegrams accepted since the last flush as one batch.
// A failed batch is logged and dropped.
func (e *Evaluator) Flush() {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.pendingMu.Lock()
	batch := e.pending
	e.pending = nil
	e.pendingMu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := e.store.RecordTelegrams(batch); err != nil {
		monitoring.Logf("evaluator: failed to archive %d telegrams: %v", len(batch), err)
	}
}

// EvaluateOnce processes everything buffered, regresses each band over
// history plus the new points and publishes the result. Once RefreshRate
// samples are buffered the new points join the history and the buffers
// are drained.
func (e *Evaluator) EvaluateOnce() Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Flush()
	n := e.proc.Len()
	points, ok := e.proc.Process(0, n)
	if !ok {
		// only reachable if the buffers shrank underneath us
		monitoring.Logf("evaluator: process(0, %d) rejected", n)
		points = eps.BandPoints{}
	}

	res := Result{EvaluatedAt: e.clock.Now(), Samples: n}
	for b := range res.Bands {
		band := eps.Band(b)
		combined := make([]eps.LinearityPoint, 0, len(e.history[b])+len(points[b]))
		combined = append(combined, e.history[b]...)
		combined = append(combined, points[b]...)

		br := BandResult{Band: band, Label: band.String(), Points: combined}
		reg, err := eps.LinearRegression(combined)
		if err != nil {
			br.Error = err.Error()
		} else {
			br.Regression = &reg
			if e.opts.DisplayJitter {
				if j, err := eps.JitteredRegression(combined, e.rng); err == nil {
					br.DisplaySlope = &j.Slope
				}
			}
		}
		res.Bands[b] = br
	}

	if n >= e.opts.RefreshRate {
		for b := range e.history {
			e.history[b] = append(e.history[b], points[b]...)
		}
		if err := e.proc.Dequeue(eps.DrainAll); err != nil {
			monitoring.Logf("evaluator: drain failed: %v", err)
		}
		if e.store != nil {
			if err := e.store.RecordDrain(points); err != nil {
				monitoring.Logf("evaluator: failed to persist linearity points: %v", err)
			}
		}
		res.Drained = true
	}

	e.latest = &res
	return res
}

// ErrNoResult is returned by Latest before the first evaluation.
var ErrNoResult = errors.New("no evaluation yet")

// Latest returns the most recent result.
func (e *Evaluator) Latest() (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return Result{}, ErrNoResult
	}
	return *e.latest, nil
}

// History returns a copy of the accumulated linearity points.
func (e *Evaluator) History() eps.BandPoints {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out eps.BandPoints
	for b := range e.history {
		out[b] = slices.Clone(e.history[b])
	}
	return out
}

// LoadHistory replaces the accumulated history, e.g. from a restored
// session.
func (e *Evaluator) LoadHistory(h eps.BandPoints) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for b := range h {
		e.history[b] = slices.Clone(h[b])
	}
}

// SetEnabled pauses or resumes evaluation. Telegrams are still ingested
// while paused.
func (e *Evaluator) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
	monitoring.Logf("evaluator: evaluation enabled=%v", enabled)
}

func (e *Evaluator) Enabled() bool { return e.enabled.Load() }

// Reset clears history, the published result and the engine buffers. The
// discarded telegrams stay archived but are marked as drained.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Flush()
	e.history = eps.BandPoints{}
	e.latest = nil
	e.proc.Reset()
	if e.store != nil {
		if err := e.store.RecordDrain(eps.BandPoints{}); err != nil {
			monitoring.Logf("evaluator: failed to mark reset: %v", err)
		}
	}
}
