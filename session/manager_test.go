package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// createTestManager builds a manager with sweeps disabled
func createTestManager(t *testing.T) (*Manager, func()) {
	t.Helper()
	m := NewManager(NewMemoryStore(), ManagerConfig{
		GracefulCloseTimeout: 100 * time.Millisecond,
		MaxSessions:          10,
	}, nil)
	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Shutdown(ctx)
	}
}

func TestCreateSession_PlainStartsActive(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	s, err := m.CreateSession("s1", Metadata{QuestionnaireID: "q-1"}, ModePlain)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if s.Status != StatusActive {
		t.Errorf("expected active, got %s", s.Status)
	}
	if s.Voice != nil {
		t.Error("plain session should not carry voice state")
	}
}

func TestCreateSession_VoiceStartsConnecting(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	s, err := m.CreateSession("s1", Metadata{QuestionnaireID: "q-1"}, ModeVoice)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if s.Status != StatusConnecting {
		t.Errorf("expected connecting, got %s", s.Status)
	}
	if s.Voice == nil {
		t.Fatal("voice session missing voice state")
	}
}

func TestCreateSession_DuplicateIDConflicts(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	if _, err := m.CreateSession("s1", Metadata{}, ModePlain); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := m.CreateSession("s1", Metadata{}, ModePlain)
	if !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
}

func TestCreateSession_CapacityLimit(t *testing.T) {
	m := NewManager(NewMemoryStore(), ManagerConfig{MaxSessions: 2}, nil)
	defer m.Shutdown(context.Background())

	m.CreateSession("s1", Metadata{}, ModePlain)
	m.CreateSession("s2", Metadata{}, ModePlain)

	_, err := m.CreateSession("s3", Metadata{}, ModePlain)
	if !errors.Is(err, ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}
}

func TestGetSession_Missing(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	_, err := m.GetSession("nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestUpdateSession_PatchAndActivity(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)
	before, _ := m.GetSession("s1")

	time.Sleep(5 * time.Millisecond)

	idx := 3
	lang := "de"
	s, err := m.UpdateSession("s1", Update{CurrentIndex: &idx, Language: &lang})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if s.CurrentIndex != 3 || s.Language != "de" {
		t.Errorf("patch not applied: %+v", s)
	}
	if !s.LastActivity.After(before.LastActivity) {
		t.Error("update did not bump last activity")
	}
}

func TestUpdateSession_ExplicitLastActivityWins(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)

	past := time.Now().Add(-10 * time.Minute)
	s, err := m.UpdateSession("s1", Update{LastActivity: &past})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !s.LastActivity.Equal(past) {
		t.Errorf("expected explicit last activity, got %v", s.LastActivity)
	}
}

func TestTransition_VoiceLifecycle(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModeVoice)

	if _, err := m.Transition("s1", StatusActive); err != nil {
		t.Fatalf("connecting→active failed: %v", err)
	}
	if _, err := m.Transition("s1", StatusCompleted); err != nil {
		t.Fatalf("active→completed failed: %v", err)
	}

	// Terminal state accepts nothing further
	_, err := m.Transition("s1", StatusTerminated)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from terminal state, got %v", err)
	}
}

func TestTransition_PlainCannotActivate(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)

	// active → error is allowed, then nothing more
	if _, err := m.Transition("s1", StatusError); err != nil {
		t.Fatalf("active→error failed: %v", err)
	}
	_, err := m.Transition("s1", StatusActive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransition_CannotReenterConnecting(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModeVoice)
	m.Transition("s1", StatusActive)

	_, err := m.Transition("s1", StatusConnecting)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateSession_VoicePatchOnPlainRejected(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)

	connected := true
	_, err := m.UpdateSession("s1", Update{Voice: &VoiceUpdate{Connected: &connected}})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateSession_ConcurrentIncrementsSerialize(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModeVoice)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.UpdateSession("s1", Update{Voice: &VoiceUpdate{AddAudioChunksIn: 1}})
		}()
	}
	wg.Wait()

	s, _ := m.GetSession("s1")
	if s.Voice.AudioChunksIn != 20 {
		t.Errorf("lost updates: expected 20 chunks, got %d", s.Voice.AudioChunksIn)
	}
}

func TestDeleteSession_RoundTrip(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)
	if err := m.DeleteSession("s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if err := m.DeleteSession("s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
	if _, err := m.GetSession("s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session still readable after delete: %v", err)
	}
}

func TestRestoreSession_ReinsertsWhenGone(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	s, _ := m.CreateSession("s1", Metadata{QuestionnaireID: "q-1"}, ModeVoice)
	snapshot := s.Clone()
	m.DeleteSession("s1")

	if err := m.RestoreSession(snapshot); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got, err := m.GetSession("s1")
	if err != nil {
		t.Fatalf("get after restore failed: %v", err)
	}
	if got.QuestionnaireID != "q-1" {
		t.Errorf("restored session lost metadata: %+v", got)
	}
}

func TestRestoreSession_LiveSessionWins(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)
	idx := 5
	m.UpdateSession("s1", Update{CurrentIndex: &idx})

	stale := newTestSession("s1")
	stale.CurrentIndex = 1
	if err := m.RestoreSession(stale); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got, _ := m.GetSession("s1")
	if got.CurrentIndex != 5 {
		t.Errorf("stale snapshot overwrote live session: index %d", got.CurrentIndex)
	}
}

func TestInactiveSweep_RemovesIdleSessions(t *testing.T) {
	closed := make(chan string, 1)
	m := NewManager(NewMemoryStore(), ManagerConfig{
		InactiveSweepInterval: 20 * time.Millisecond,
		InactiveThreshold:     50 * time.Millisecond,
		GracefulCloseTimeout:  100 * time.Millisecond,
	}, nil)
	defer m.Shutdown(context.Background())

	m.SetGracefulCloser(func(ctx context.Context, id string) error {
		closed <- id
		return m.DeleteSession(id)
	})

	m.CreateSession("idle", Metadata{}, ModePlain)
	past := time.Now().Add(-time.Minute)
	m.UpdateSession("idle", Update{LastActivity: &past})

	m.CreateSession("busy", Metadata{}, ModePlain)

	select {
	case id := <-closed:
		if id != "idle" {
			t.Errorf("swept wrong session: %s", id)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for inactive sweep")
	}

	// The active session survives
	if _, err := m.GetSession("busy"); err != nil {
		t.Errorf("busy session was swept: %v", err)
	}
}

func TestSweep_ForcesRemovalWhenGracefulCloseHangs(t *testing.T) {
	m := NewManager(NewMemoryStore(), ManagerConfig{
		InactiveSweepInterval: 20 * time.Millisecond,
		InactiveThreshold:     50 * time.Millisecond,
		GracefulCloseTimeout:  30 * time.Millisecond,
	}, nil)
	defer m.Shutdown(context.Background())

	m.SetGracefulCloser(func(ctx context.Context, id string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	m.CreateSession("stuck", Metadata{}, ModePlain)
	past := time.Now().Add(-time.Minute)
	m.UpdateSession("stuck", Update{LastActivity: &past})

	deadline := time.After(time.Second)
	for {
		if _, err := m.GetSession("stuck"); errors.Is(err, ErrSessionNotFound) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("session was never force-removed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStaleSweep_CatchesWhatInactiveSweepMissed(t *testing.T) {
	// Only the stale sweep is running here
	m := NewManager(NewMemoryStore(), ManagerConfig{
		StaleSweepInterval:   20 * time.Millisecond,
		StaleThreshold:       50 * time.Millisecond,
		GracefulCloseTimeout: 100 * time.Millisecond,
	}, nil)
	defer m.Shutdown(context.Background())

	m.CreateSession("old", Metadata{}, ModePlain)
	past := time.Now().Add(-time.Hour)
	m.UpdateSession("old", Update{LastActivity: &past})

	deadline := time.After(time.Second)
	for {
		if _, err := m.GetSession("old"); errors.Is(err, ErrSessionNotFound) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("stale sweep never removed the session")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRecordResponse_ReplacesSameQuestion(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)

	if _, err := m.RecordResponse("s1", "q1", "first"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := m.RecordResponse("s1", "q1", "second"); err != nil {
		t.Fatalf("re-record failed: %v", err)
	}
	idx, err := m.RecordResponse("s1", "q2", "other")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	s, _ := m.GetSession("s1")
	if len(s.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(s.Responses))
	}
	r, ok := s.ResponseFor("q1")
	if !ok || r.Value != "second" {
		t.Errorf("re-record did not replace: %+v", r)
	}
	if idx != s.CurrentIndex {
		t.Errorf("returned index %d does not match session %d", idx, s.CurrentIndex)
	}
}

func TestAppendTurn_CountsUserTurns(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModeVoice)

	m.AppendTurn("s1", "user", "hello")
	m.AppendTurn("s1", "assistant", "hi there")
	m.AppendTurn("s1", "user", "my answer")

	s, _ := m.GetSession("s1")
	if len(s.Turns) != 3 {
		t.Errorf("expected 3 turns, got %d", len(s.Turns))
	}
	if s.Voice.TurnCount != 2 {
		t.Errorf("expected 2 user turns counted, got %d", s.Voice.TurnCount)
	}
}

func TestCompleteSurvey_TerminalAfterward(t *testing.T) {
	m, cleanup := createTestManager(t)
	defer cleanup()

	m.CreateSession("s1", Metadata{}, ModePlain)

	if err := m.CompleteSurvey("s1"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	s, _ := m.GetSession("s1")
	if s.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", s.Status)
	}
	if _, err := m.RecordResponse("s1", "q1", "late"); err == nil {
		t.Error("expected recording after completion to fail")
	}
}
