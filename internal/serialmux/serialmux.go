// Package serialmux fans out the newline-terminated telegrams read from a
// single port (a UART, a replayed capture file, or a test double) to any
// number of subscribers.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the subscriber channel capacity used when none is given.
const DefaultQueueSize = 256

// SerialMux is a generic serial port multiplexer that allows multiple clients to
// subscribe to lines from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	queueSize    int
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	lines   atomic.Uint64
	dropped atomic.Uint64
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new bounded channel for receiving lines from the
	// serial port. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Monitor reads lines from the serial port and sends them to the
	// subscribed channels.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error
	// Stats reports how many lines were read and how many were dropped
	// because a subscriber queue was full.
	Stats() Stats

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// Stats counts lines seen by Monitor.
type Stats struct {
	Lines   uint64 `json:"lines"`
	Dropped uint64 `json:"dropped"`
}

// NewSerialMux creates a SerialMux instance backed by port. Subscriber
// channels hold up to queueSize lines; a non-positive size selects
// DefaultQueueSize.
func NewSerialMux[T SerialPorter](port T, queueSize int) *SerialMux[T] {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &SerialMux[T]{
		port:        port,
		queueSize:   queueSize,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, s.queueSize)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Stats returns the line counters.
func (s *SerialMux[T]) Stats() Stats {
	return Stats{Lines: s.lines.Load(), Dropped: s.dropped.Load()}
}

// Monitor reads the port line by line and forwards each non-empty line to
// every subscriber. It returns nil when the port reaches EOF, the scan error
// if reading fails, or the context error once ctx is done.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so the outer loop can
	// keep watching for cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			s.lines.Add(1)

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// a full queue must not stall the reader
					s.dropped.Add(1)
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}
