package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/voxform/voxform/session"
)

type fakeCanceller struct {
	mu       sync.Mutex
	sessions []string
}

func (f *fakeCanceller) CancelForSession(sessionID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionID)
	return []string{"c1"}
}

func (f *fakeCanceller) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeStreams struct {
	mu     sync.Mutex
	closed []string
	err    error
}

func (f *fakeStreams) CloseStream(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, sessionID)
	return f.err
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
	err     error
	block   chan struct{} // if set, DeleteSession waits on it
}

func (f *fakeDeleter) DeleteSession(id string) error {
	f.mu.Lock()
	b := f.block
	f.mu.Unlock()
	if b != nil {
		<-b
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDeleter) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func TestCleanupSession_GracefulPath(t *testing.T) {
	tracker := &fakeCanceller{}
	streams := &fakeStreams{}
	deleter := &fakeDeleter{}
	o := NewOrchestrator(deleter, tracker, streams, time.Second)

	if err := o.CleanupSession(context.Background(), "s1"); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if tracker.calls() != 1 {
		t.Errorf("expected 1 cancel pass, got %d", tracker.calls())
	}
	if len(streams.closed) != 1 || streams.closed[0] != "s1" {
		t.Errorf("stream not closed: %v", streams.closed)
	}
	if deleter.deleteCount() != 1 {
		t.Errorf("session not deleted: %v", deleter.deleted)
	}
}

func TestCleanupSession_MissingSessionIsNotAnError(t *testing.T) {
	deleter := &fakeDeleter{err: fmt.Errorf("delete s1: %w", session.ErrSessionNotFound)}
	o := NewOrchestrator(deleter, &fakeCanceller{}, &fakeStreams{}, time.Second)

	if err := o.CleanupSession(context.Background(), "s1"); err != nil {
		t.Errorf("expected nil for already-gone session, got %v", err)
	}
}

func TestCleanupSession_StreamFailureDoesNotBlockDeletion(t *testing.T) {
	streams := &fakeStreams{err: errors.New("connection reset")}
	deleter := &fakeDeleter{}
	o := NewOrchestrator(deleter, &fakeCanceller{}, streams, time.Second)

	if err := o.CleanupSession(context.Background(), "s1"); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleter.deleteCount() != 1 {
		t.Error("deletion skipped after stream close failure")
	}
}

func TestCleanupSession_TimeoutEscalatesToForce(t *testing.T) {
	tracker := &fakeCanceller{}
	streams := &fakeStreams{}

	// First delete hangs past the budget; the forced path's delete runs free
	block := make(chan struct{})
	deleter := &fakeDeleter{block: block}
	o := NewOrchestrator(deleter, tracker, streams, 30*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		errCh <- o.CleanupSession(context.Background(), "s1")
	}()

	// Unblock after the graceful budget has clearly elapsed
	time.Sleep(60 * time.Millisecond)
	close(block)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("cleanup returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup never returned")
	}

	// The forced path ran a second cancel pass
	if tracker.calls() < 2 {
		t.Errorf("expected forced cancel pass, got %d passes", tracker.calls())
	}
}

func TestCleanupSession_GracefulErrorForces(t *testing.T) {
	tracker := &fakeCanceller{}
	deleter := &fakeDeleter{err: errors.New("store unavailable")}
	o := NewOrchestrator(deleter, tracker, &fakeStreams{}, time.Second)

	if err := o.CleanupSession(context.Background(), "s1"); err != nil {
		t.Fatalf("cleanup surfaced error: %v", err)
	}
	if tracker.calls() != 2 {
		t.Errorf("expected graceful + forced cancel passes, got %d", tracker.calls())
	}
}

type panickyCanceller struct{}

func (panickyCanceller) CancelForSession(string) []string {
	panic("tracker corrupted")
}

func TestForce_SurvivesPanickingCollaborator(t *testing.T) {
	deleter := &fakeDeleter{}
	o := NewOrchestrator(deleter, panickyCanceller{}, &fakeStreams{}, time.Second)

	o.Force("s1")

	if deleter.deleteCount() != 1 {
		t.Error("forced delete skipped after collaborator panic")
	}
}
