// Package cleanup composes the session manager, tool tracker, and stream
// registry into one graceful-with-timeout teardown path plus a forced
// fallback that always leaves the store clean.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxform/voxform/log"
	"github.com/voxform/voxform/session"
)

var logger = log.GetLogger("cleanup")

// errTimeout marks a graceful path that missed its budget. It never
// escapes the orchestrator; the forced path always runs instead.
var errTimeout = errors.New("graceful cleanup timed out")

// Canceller stops in-flight tool calls for a session
type Canceller interface {
	CancelForSession(sessionID string) []string
}

// StreamCloser shuts the session's AI sub-connection
type StreamCloser interface {
	CloseStream(ctx context.Context, sessionID string) error
}

// SessionDeleter removes the session from the store
type SessionDeleter interface {
	DeleteSession(id string) error
}

// Orchestrator owns the teardown sequence
type Orchestrator struct {
	sessions SessionDeleter
	tracker  Canceller
	streams  StreamCloser
	timeout  time.Duration
}

// NewOrchestrator creates an orchestrator with a graceful-path budget
func NewOrchestrator(sessions SessionDeleter, tracker Canceller, streams StreamCloser, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		tracker:  tracker,
		streams:  streams,
		timeout:  timeout,
	}
}

// CleanupSession tears a session down. The graceful sequence — cancel
// tool calls, close the AI stream, delete the session — races a bounded
// timeout; exceeding it or failing escalates to the forced path, so the
// session is gone from the store when this returns.
func (o *Orchestrator) CleanupSession(ctx context.Context, id string) error {
	gctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- o.graceful(gctx, id)
	}()

	var err error
	select {
	case err = <-done:
	case <-gctx.Done():
		err = errTimeout
	}

	if err != nil {
		// Not-found just means someone else finished the job
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		logger.Warn().Err(err).Str("sessionId", id).Msg("graceful cleanup failed, forcing")
		o.Force(id)
	}
	return nil
}

// graceful runs the ordered teardown: background work stops first so it
// cannot write results into a session that is about to vanish
func (o *Orchestrator) graceful(ctx context.Context, id string) error {
	cancelled := o.tracker.CancelForSession(id)
	if len(cancelled) > 0 {
		logger.Debug().Str("sessionId", id).Int("cancelled", len(cancelled)).Msg("cancelled pending tool calls")
	}

	if err := o.streams.CloseStream(ctx, id); err != nil {
		// Best-effort: a dead stream should not block session removal
		logger.Debug().Err(err).Str("sessionId", id).Msg("stream close failed during cleanup")
	}

	if err := o.sessions.DeleteSession(id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	logger.Info().Str("sessionId", id).Msg("session cleaned up")
	return nil
}

// Force guarantees the session disappears from the store even when every
// collaborator call fails. All errors are swallowed.
func (o *Orchestrator) Force(id string) {
	func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Error().Interface("panic", p).Str("sessionId", id).Msg("panic during forced tool cancel")
			}
		}()
		o.tracker.CancelForSession(id)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.streams.CloseStream(ctx, id); err != nil {
		logger.Debug().Err(err).Str("sessionId", id).Msg("forced stream close failed")
	}

	if err := o.sessions.DeleteSession(id); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		logger.Error().Err(err).Str("sessionId", id).Msg("forced session delete failed")
	}
}
