package serialmux

import (
	"bytes"
	"io"
	"sync"
)

// TestableSerialPort implements SerialPorter for tests. Telegrams are fed
// with AddLines; with BlockReads set, Read waits for more data instead of
// reporting EOF once the buffer is drained.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	for t.BlockReads && !t.Closed && t.ReadBuffer.Len() == 0 {
		t.readCond.Wait()
	}
	if t.Closed {
		return 0, io.EOF
	}

	return t.ReadBuffer.Read(p)
}

// Write captures p in WriteBuffer.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, io.ErrClosedPipe
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()

	return t.CloseError
}

// AddLines appends newline-terminated telegrams to the read buffer.
func (t *TestableSerialPort) AddLines(lines ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range lines {
		t.ReadBuffer.WriteString(l)
		t.ReadBuffer.WriteByte('\n')
	}
	t.readCond.Broadcast()
}
