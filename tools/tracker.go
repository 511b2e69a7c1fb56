package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxform/voxform/log"
)

var logger = log.GetLogger("tools")

// Pending is one tracked in-flight tool call. Its context is cancelled
// when the call is cancelled explicitly; handlers observe it cooperatively.
type Pending struct {
	CallID    string
	ToolName  string
	SessionID string
	StartTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the cancellation context for this call
func (p *Pending) Context() context.Context {
	return p.ctx
}

// Tracker is the bookkeeping for in-flight tool calls, keyed by call id.
// Entries must never outlive their terminal outcome; the executor settles
// each call exactly once no matter which arm of the race wins.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		pending: make(map[string]*Pending),
	}
}

// Track registers an in-flight call. A duplicate call id is a caller bug
// and fails with ErrAlreadyTracked.
func (t *Tracker) Track(callID, toolName, sessionID string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[callID]; ok {
		return nil, fmt.Errorf("call %s: %w", callID, ErrAlreadyTracked)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pending{
		CallID:    callID,
		ToolName:  toolName,
		SessionID: sessionID,
		StartTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	t.pending[callID] = p
	return p, nil
}

// Settle removes the entry for a completed, timed-out, or cancelled call.
// Safe to call more than once; only the first has any effect.
func (t *Tracker) Settle(callID string) {
	t.mu.Lock()
	p, ok := t.pending[callID]
	if ok {
		delete(t.pending, callID)
	}
	t.mu.Unlock()

	if ok {
		p.cancel()
	}
}

// IsPending reports whether a call id is still tracked
func (t *Tracker) IsPending(callID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[callID]
	return ok
}

// Count returns the number of tracked calls
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Cancel signals and removes each tracked id found, returning the ids
// actually cancelled. Unknown ids are skipped, not errors.
func (t *Tracker) Cancel(callIDs []string) []string {
	t.mu.Lock()
	var toCancel []*Pending
	for _, id := range callIDs {
		if p, ok := t.pending[id]; ok {
			delete(t.pending, id)
			toCancel = append(toCancel, p)
		}
	}
	t.mu.Unlock()

	cancelled := make([]string, 0, len(toCancel))
	for _, p := range toCancel {
		p.cancel()
		cancelled = append(cancelled, p.CallID)
		logger.Debug().Str("callId", p.CallID).Str("tool", p.ToolName).Msg("cancelled tool call")
	}
	return cancelled
}

// CancelForSession cancels every tracked call belonging to a session.
// Used during teardown so background work cannot write into a session
// that is about to vanish.
func (t *Tracker) CancelForSession(sessionID string) []string {
	t.mu.Lock()
	var toCancel []*Pending
	for id, p := range t.pending {
		if p.SessionID == sessionID {
			delete(t.pending, id)
			toCancel = append(toCancel, p)
		}
	}
	t.mu.Unlock()

	cancelled := make([]string, 0, len(toCancel))
	for _, p := range toCancel {
		p.cancel()
		cancelled = append(cancelled, p.CallID)
	}

	if len(cancelled) > 0 {
		logger.Info().Str("sessionId", sessionID).Int("count", len(cancelled)).Msg("cancelled session tool calls")
	}
	return cancelled
}
