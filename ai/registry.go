package ai

import (
	"context"
	"sync"
)

// StreamRegistry tracks the live stream for each session so teardown can
// reach it without holding a reference to the connection that opened it
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[string]Stream
}

// NewStreamRegistry creates an empty registry
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{
		streams: make(map[string]Stream),
	}
}

// Register associates a stream with a session, closing any prior one
func (r *StreamRegistry) Register(sessionID string, s Stream) {
	r.mu.Lock()
	prior := r.streams[sessionID]
	r.streams[sessionID] = s
	r.mu.Unlock()

	if prior != nil {
		_ = prior.Close(context.Background())
	}
}

// Get returns the live stream for a session, if any
func (r *StreamRegistry) Get(sessionID string) (Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[sessionID]
	return s, ok
}

// Len returns the number of open streams
func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Remove drops the registration without closing the stream
func (r *StreamRegistry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.streams, sessionID)
	r.mu.Unlock()
}

// CloseStream closes and removes the stream for a session. A missing
// stream is not an error.
func (r *StreamRegistry) CloseStream(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	s, ok := r.streams[sessionID]
	delete(r.streams, sessionID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close(ctx)
}
