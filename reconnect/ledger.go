// Package reconnect holds transient state for sessions whose connection just
// dropped, so a fast client reconnect can resume instead of starting over.
package reconnect

import (
	"context"
	"sync"
	"time"

	"github.com/voxform/voxform/log"
)

var logger = log.GetLogger("reconnect")

// Preserved is the state held for one disconnected session. At most one
// entry exists per session id.
type Preserved struct {
	SessionID      string
	DisconnectedAt time.Time
	StreamActive   bool // whether the AI stream was up at disconnect time
	State          interface{}
}

// LedgerConfig holds the reconnection window and the expiry sweep cadence
type LedgerConfig struct {
	Window        time.Duration
	SweepInterval time.Duration
}

// Ledger is the short-lived holding area for preserved session state
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*Preserved
	cfg     LedgerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLedger creates a ledger and starts its expiry sweep
func NewLedger(cfg LedgerConfig) *Ledger {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Ledger{
		entries: make(map[string]*Preserved),
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.SweepInterval > 0 {
		l.wg.Add(1)
		go l.runSweep()
	}

	return l
}

// Shutdown stops the expiry sweep
func (l *Ledger) Shutdown() {
	l.cancel()
	l.wg.Wait()
}

// Preserve stores state for a just-disconnected session, overwriting any
// prior entry for the same id
func (l *Ledger) Preserve(id string, state interface{}, streamActive bool) {
	l.mu.Lock()
	l.entries[id] = &Preserved{
		SessionID:      id,
		DisconnectedAt: time.Now(),
		StreamActive:   streamActive,
		State:          state,
	}
	l.mu.Unlock()

	logger.Debug().Str("sessionId", id).Bool("streamActive", streamActive).Msg("preserved session state")
}

// Restore returns the preserved state if the entry is inside the window,
// removing it either way. Restore is single-use: a second call for the
// same id returns nil even inside the window.
func (l *Ledger) Restore(id string) *Preserved {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.entries[id]
	if !ok {
		return nil
	}
	delete(l.entries, id)

	if time.Since(p.DisconnectedAt) > l.cfg.Window {
		logger.Debug().Str("sessionId", id).Msg("preserved state expired")
		return nil
	}
	return p
}

// CanRestore reports whether an unexpired entry exists, without mutating it
func (l *Ledger) CanRestore(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.entries[id]
	if !ok {
		return false
	}
	return time.Since(p.DisconnectedAt) <= l.cfg.Window
}

// Len returns the number of held entries
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// runSweep drops entries older than the window that were never restored,
// bounding memory when clients never come back
func (l *Ledger) runSweep() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			logger.Debug().Msg("reconnect sweep stopping")
			return
		case <-ticker.C:
			l.sweepExpired()
		}
	}
}

func (l *Ledger) sweepExpired() {
	now := time.Now()
	removed := 0

	l.mu.Lock()
	for id, p := range l.entries {
		if now.Sub(p.DisconnectedAt) > l.cfg.Window {
			delete(l.entries, id)
			removed++
		}
	}
	l.mu.Unlock()

	if removed > 0 {
		logger.Debug().Int("removed", removed).Msg("expired preserved sessions removed")
	}
}
