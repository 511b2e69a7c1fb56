package tools

import (
	"errors"
	"sort"
	"testing"
	"time"
)

func TestTrack_RoundTrip(t *testing.T) {
	tr := NewTracker()

	p, err := tr.Track("c1", "record_response", "s1")
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if p.CallID != "c1" || p.ToolName != "record_response" || p.SessionID != "s1" {
		t.Errorf("unexpected pending entry: %+v", p)
	}
	if !tr.IsPending("c1") {
		t.Error("call not pending after track")
	}
	if tr.Count() != 1 {
		t.Errorf("expected count 1, got %d", tr.Count())
	}
}

func TestTrack_DuplicateCallID(t *testing.T) {
	tr := NewTracker()

	tr.Track("c1", "record_response", "s1")
	_, err := tr.Track("c1", "end_survey", "s1")
	if !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("expected ErrAlreadyTracked, got %v", err)
	}
}

func TestSettle_RemovesAndCancels(t *testing.T) {
	tr := NewTracker()

	p, _ := tr.Track("c1", "record_response", "s1")
	tr.Settle("c1")

	if tr.IsPending("c1") {
		t.Error("call still pending after settle")
	}
	select {
	case <-p.Context().Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("settle did not cancel the call context")
	}

	// Settling again is a no-op
	tr.Settle("c1")
	tr.Settle("unknown")
}

func TestCancel_ReturnsOnlyTrackedIDs(t *testing.T) {
	tr := NewTracker()

	p1, _ := tr.Track("c1", "record_response", "s1")
	tr.Track("c2", "skip_question", "s1")

	cancelled := tr.Cancel([]string{"c1", "ghost"})
	if len(cancelled) != 1 || cancelled[0] != "c1" {
		t.Errorf("expected [c1], got %v", cancelled)
	}

	select {
	case <-p1.Context().Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("cancel did not signal the call context")
	}

	if !tr.IsPending("c2") {
		t.Error("untargeted call was removed")
	}
}

func TestCancelForSession_OnlyThatSession(t *testing.T) {
	tr := NewTracker()

	tr.Track("c1", "record_response", "s1")
	tr.Track("c2", "skip_question", "s1")
	tr.Track("c3", "record_response", "s2")

	cancelled := tr.CancelForSession("s1")
	sort.Strings(cancelled)
	if len(cancelled) != 2 || cancelled[0] != "c1" || cancelled[1] != "c2" {
		t.Errorf("expected [c1 c2], got %v", cancelled)
	}

	if !tr.IsPending("c3") {
		t.Error("call for other session was cancelled")
	}
	if tr.Count() != 1 {
		t.Errorf("expected 1 remaining call, got %d", tr.Count())
	}
}

func TestCancelForSession_EmptyIsFine(t *testing.T) {
	tr := NewTracker()

	if got := tr.CancelForSession("nope"); len(got) != 0 {
		t.Errorf("expected no cancellations, got %v", got)
	}
}
