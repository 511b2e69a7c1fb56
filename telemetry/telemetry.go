// Package telemetry emits fire-and-forget lifecycle events. Failures here
// never propagate into lifecycle-affecting errors.
package telemetry

import (
	"sync"

	"github.com/voxform/voxform/log"
)

// Emitter logs lifecycle events and keeps per-event counters for the
// stats endpoint
type Emitter struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewEmitter creates an emitter
func NewEmitter() *Emitter {
	return &Emitter{
		counters: make(map[string]int64),
	}
}

// Emit records one event. It never blocks on anything but its own counter
// lock and never returns an error.
func (e *Emitter) Emit(event string, fields map[string]interface{}) {
	e.mu.Lock()
	e.counters[event]++
	e.mu.Unlock()

	ev := log.Debug().Str("event", event)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("telemetry")
}

// Counters returns a snapshot of the per-event counts
func (e *Emitter) Counters() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int64, len(e.counters))
	for k, v := range e.counters {
		out[k] = v
	}
	return out
}
