package serialmux

import (
	"context"
	"net/http"
	"sync"
)

// DisabledSerialMux is a no-op SerialMuxInterface used when no telegram
// source is configured (source "none"). It lets the API serve restored
// sessions without a device. Subscriber channels are tracked so they can be
// closed on Unsubscribe() or Close(), unblocking readers during shutdown.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Stats() Stats { return Stats{} }

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("serial disabled"))
	})
}
