package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Writer wraps the async WriteAPI and tracks the last write error so the
// health endpoints can report on it.
type Writer struct {
	api     api.WriteAPI
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// NewWriter starts the listener for Influx's async write errors.
func NewWriter(w api.WriteAPI) *Writer {
	ww := &Writer{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				log.Printf("telemetry: influx write error: %v", err)
			}
		}
	}()
	return ww
}

// Write enqueues one event.
func (w *Writer) Write(evt CommonEvent) {
	w.api.WritePoint(EventToPoint(evt))
	w.mu.Lock()
	w.counts[evt.EventType]++
	w.mu.Unlock()
}

// LastErrorAge reports how long writes have gone without an error.
func (w *Writer) LastErrorAge() time.Duration {
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Count returns the ingest counter for one event type.
func (w *Writer) Count(eventType string) int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.counts[eventType]
}
