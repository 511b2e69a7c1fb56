package reconnect

import (
	"testing"
	"time"
)

func newTestLedger(window time.Duration) *Ledger {
	// No sweep; expiry is checked on access
	return NewLedger(LedgerConfig{Window: window})
}

func TestRestore_RoundTrip(t *testing.T) {
	l := newTestLedger(time.Second)
	defer l.Shutdown()

	l.Preserve("s1", "state-blob", true)

	p := l.Restore("s1")
	if p == nil {
		t.Fatal("expected preserved state")
	}
	if p.SessionID != "s1" || p.State != "state-blob" || !p.StreamActive {
		t.Errorf("unexpected preserved entry: %+v", p)
	}
}

func TestRestore_SingleUse(t *testing.T) {
	l := newTestLedger(time.Second)
	defer l.Shutdown()

	l.Preserve("s1", nil, false)

	if l.Restore("s1") == nil {
		t.Fatal("first restore failed")
	}
	if l.Restore("s1") != nil {
		t.Error("second restore should return nil")
	}
}

func TestRestore_ExpiredReturnsNilAndRemoves(t *testing.T) {
	l := newTestLedger(20 * time.Millisecond)
	defer l.Shutdown()

	l.Preserve("s1", nil, false)
	time.Sleep(40 * time.Millisecond)

	if l.Restore("s1") != nil {
		t.Error("expired entry should not restore")
	}
	if l.Len() != 0 {
		t.Errorf("expired entry still held, len=%d", l.Len())
	}
}

func TestRestore_Missing(t *testing.T) {
	l := newTestLedger(time.Second)
	defer l.Shutdown()

	if l.Restore("nope") != nil {
		t.Error("expected nil for unknown session")
	}
}

func TestPreserve_OverwritesPriorEntry(t *testing.T) {
	l := newTestLedger(time.Second)
	defer l.Shutdown()

	l.Preserve("s1", "old", false)
	l.Preserve("s1", "new", true)

	if l.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", l.Len())
	}
	p := l.Restore("s1")
	if p == nil || p.State != "new" || !p.StreamActive {
		t.Errorf("overwrite did not take: %+v", p)
	}
}

func TestCanRestore_DoesNotConsume(t *testing.T) {
	l := newTestLedger(time.Second)
	defer l.Shutdown()

	l.Preserve("s1", nil, false)

	if !l.CanRestore("s1") {
		t.Fatal("expected restorable entry")
	}
	if !l.CanRestore("s1") {
		t.Fatal("CanRestore consumed the entry")
	}
	if l.Restore("s1") == nil {
		t.Error("entry gone after CanRestore")
	}
}

func TestCanRestore_Expired(t *testing.T) {
	l := newTestLedger(20 * time.Millisecond)
	defer l.Shutdown()

	l.Preserve("s1", nil, false)
	time.Sleep(40 * time.Millisecond)

	if l.CanRestore("s1") {
		t.Error("expired entry reported restorable")
	}
}

func TestSweep_DropsExpiredEntries(t *testing.T) {
	l := NewLedger(LedgerConfig{
		Window:        20 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	defer l.Shutdown()

	l.Preserve("s1", nil, false)
	l.Preserve("s2", nil, false)

	deadline := time.After(500 * time.Millisecond)
	for l.Len() > 0 {
		select {
		case <-deadline:
			t.Fatalf("sweep never drained ledger, len=%d", l.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
