package serialmux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return line
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for line")
	}
	return ""
}

func TestSerialMux_SubscribeUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(), 4)

	id1, ch1 := mux.Subscribe()
	id2, _ := mux.Subscribe()
	if id1 == "" || id1 == id2 {
		t.Fatalf("subscription ids %q and %q should be unique and non-empty", id1, id2)
	}
	if cap(ch1) != 4 {
		t.Errorf("subscriber queue capacity = %d, want 4", cap(ch1))
	}

	mux.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
	mux.Unsubscribe("non-existent-id")

	mux.subscriberMu.Lock()
	n := len(mux.subscribers)
	mux.subscriberMu.Unlock()
	if n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
}

func TestSerialMux_DefaultQueueSize(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(), 0)
	_, ch := mux.Subscribe()
	if cap(ch) != DefaultQueueSize {
		t.Errorf("capacity = %d, want %d", cap(ch), DefaultQueueSize)
	}
}

func TestSerialMux_MonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddLines("SPD:5.0,ANG:-70,TRQ:2500", "", "SPD:5.0,ANG:-65,TRQ:2600\r")
	mux := NewSerialMux(port, 8)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	if err := mux.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor returned %v at EOF", err)
	}

	for _, ch := range []chan string{a, b} {
		if got := recv(t, ch); got != "SPD:5.0,ANG:-70,TRQ:2500" {
			t.Errorf("first line = %q", got)
		}
		if got := recv(t, ch); got != "SPD:5.0,ANG:-65,TRQ:2600" {
			t.Errorf("second line = %q", got)
		}
	}
	if got := mux.Stats(); got != (Stats{Lines: 2}) {
		t.Errorf("Stats() = %+v, want 2 lines and no drops", got)
	}
}

func TestSerialMux_MonitorDropsWhenQueueFull(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddLines("a:1", "b:2", "c:3", "d:4")
	mux := NewSerialMux(port, 2)
	_, ch := mux.Subscribe()

	if err := mux.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if got := mux.Stats(); got.Lines != 4 || got.Dropped != 2 {
		t.Errorf("Stats() = %+v, want 4 lines 2 dropped", got)
	}
	if got := recv(t, ch); got != "a:1" {
		t.Errorf("first queued line = %q", got)
	}
}

func TestSerialMux_MonitorReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("uart framing error")
	mux := NewSerialMux(port, 1)
	if err := mux.Monitor(context.Background()); err == nil || !strings.Contains(err.Error(), "framing") {
		t.Errorf("Monitor error = %v, want framing error", err)
	}
}

func TestSerialMux_MonitorCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not stop on cancel")
	}
	mux.Close()
}

func TestSerialMux_Close(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, 1)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
	if !port.Closed {
		t.Error("port not closed")
	}
}

func TestNewRealSerialMux(t *testing.T) {
	original := openPort
	defer func() { openPort = original }()

	var gotPath string
	var gotMode *serial.Mode
	fake := NewTestableSerialPort()
	openPort = func(path string, mode *serial.Mode) (SerialPorter, error) {
		gotPath, gotMode = path, mode
		return fake, nil
	}

	mux, err := NewRealSerialMux("/dev/ttyS0", PortOptions{BaudRate: 115200}, 16)
	if err != nil {
		t.Fatalf("NewRealSerialMux: %v", err)
	}
	if gotPath != "/dev/ttyS0" || gotMode.BaudRate != 115200 {
		t.Errorf("opened %q with %+v", gotPath, gotMode)
	}
	if mux.port != SerialPorter(fake) {
		t.Error("mux not backed by opened port")
	}

	openPort = func(string, *serial.Mode) (SerialPorter, error) { return nil, errors.New("no such device") }
	if _, err := NewRealSerialMux("/dev/ttyS9", PortOptions{}, 1); err == nil {
		t.Error("expected open error")
	}
	if _, err := NewRealSerialMux("/dev/ttyS0", PortOptions{Parity: "X"}, 1); err == nil {
		t.Error("expected options error")
	}
}

func TestSerialMux_AdminTail(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port, 4)
	defer mux.Close()

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	reqCtx, reqCancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/debug/tail", nil).WithContext(reqCtx)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()

	served := make(chan struct{})
	go func() {
		httpMux.ServeHTTP(rec, req)
		close(served)
	}()

	// wait for the handler to subscribe before feeding data
	deadline := time.Now().Add(time.Second)
	for {
		mux.subscriberMu.Lock()
		n := len(mux.subscribers)
		mux.subscriberMu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tail handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	port.AddLines("SPD:1,ANG:2,TRQ:2400")

	deadline = time.Now().Add(time.Second)
	for mux.Stats().Lines == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	reqCancel()
	<-served

	if !strings.Contains(rec.Body.String(), "data: SPD:1,ANG:2,TRQ:2400") {
		t.Errorf("tail body = %q", rec.Body.String())
	}
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel open after Unsubscribe")
	}

	_, ch = d.Subscribe()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}
	if _, ch := d.Subscribe(); ch != nil {
		if _, ok := <-ch; ok {
			t.Error("Subscribe after Close returned an open channel")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Monitor(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Monitor = %v", err)
	}
	if d.Stats() != (Stats{}) {
		t.Errorf("Stats = %+v", d.Stats())
	}
}
