package serialmux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ErrReadOnly is returned when writing to a replay port.
var ErrReadOnly = errors.New("replay port is read-only")

// ReplayPort implements SerialPorter over a recorded telegram file, handing
// out one line per interval so the engine sees a paced stream like the one
// coming from the UART.
type ReplayPort struct {
	mu       sync.Mutex
	r        *bufio.Reader
	c        io.Closer
	interval time.Duration
	pending  []byte
	closed   bool
	sleep    func(time.Duration)
}

// NewReplayPort wraps rc. Each Read returns at most one line and waits
// interval before handing out the next.
func NewReplayPort(rc io.ReadCloser, interval time.Duration) *ReplayPort {
	return &ReplayPort{
		r:        bufio.NewReader(rc),
		c:        rc,
		interval: interval,
		sleep:    time.Sleep,
	}
}

// OpenReplayPort opens the telegram file at path.
func OpenReplayPort(path string, interval time.Duration) (*ReplayPort, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	return NewReplayPort(f, interval), nil
}

func (p *ReplayPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.EOF
	}

	if len(p.pending) == 0 {
		line, err := p.r.ReadBytes('\n')
		if len(line) == 0 {
			return 0, err
		}
		if line[len(line)-1] != '\n' {
			line = append(line, '\n')
		}
		if p.interval > 0 {
			p.mu.Unlock()
			p.sleep(p.interval)
			p.mu.Lock()
			if p.closed {
				return 0, io.EOF
			}
		}
		p.pending = line
	}

	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write always fails; the sensor link is receive-only.
func (p *ReplayPort) Write([]byte) (int, error) {
	return 0, ErrReadOnly
}

func (p *ReplayPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.c.Close()
}

// NewReplaySerialMux creates a SerialMux that replays the telegram file at
// path. Monitor returns nil once the file is exhausted.
func NewReplaySerialMux(path string, interval time.Duration, queueSize int) (*SerialMux[*ReplayPort], error) {
	port, err := OpenReplayPort(path, interval)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port, queueSize), nil
}
