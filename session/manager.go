package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxform/voxform/log"
)

var logger = log.GetLogger("session")

// Emitter receives fire-and-forget lifecycle telemetry. Implementations
// must never block or fail lifecycle operations.
type Emitter interface {
	Emit(event string, fields map[string]interface{})
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, map[string]interface{}) {}

// CloseFunc is the graceful teardown path the sweeps hand idle sessions to.
// It is wired to the cleanup orchestrator at process start.
type CloseFunc func(ctx context.Context, id string) error

// ManagerConfig holds the sweep cadences and thresholds
type ManagerConfig struct {
	InactiveSweepInterval time.Duration
	InactiveThreshold     time.Duration
	StaleSweepInterval    time.Duration
	StaleThreshold        time.Duration
	GracefulCloseTimeout  time.Duration
	MaxSessions           int
}

// Manager owns the canonical session lifecycle operations over the Store,
// the periodic inactivity and staleness sweeps, and the state machine for
// voice-backed sessions.
type Manager struct {
	store   Store
	cfg     ManagerConfig
	emitter Emitter

	// Per-session update serialization. Two concurrent UpdateSession calls
	// for the same id would otherwise interleave their read-merge-write
	// cycles and the last Set would win.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	closeMu sync.RWMutex
	closeFn CloseFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager and starts its sweep workers
func NewManager(store Store, cfg ManagerConfig, emitter Emitter) *Manager {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		store:   store,
		cfg:     cfg,
		emitter: emitter,
		locks:   make(map[string]*sync.Mutex),
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.InactiveSweepInterval > 0 {
		m.wg.Add(1)
		go m.runInactiveSweep()
	}
	if cfg.StaleSweepInterval > 0 {
		m.wg.Add(1)
		go m.runStaleSweep()
	}

	return m
}

// SetGracefulCloser wires the sweeps' graceful teardown path
func (m *Manager) SetGracefulCloser(fn CloseFunc) {
	m.closeMu.Lock()
	m.closeFn = fn
	m.closeMu.Unlock()
}

// Shutdown stops the sweep workers
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn().Msg("session manager shutdown timed out")
		return ctx.Err()
	}
}

// CreateSession initializes and stores a new session. Voice sessions start
// in connecting until the AI stream acknowledges the handshake; plain
// sessions start active. An existing id is an explicit conflict.
func (m *Manager) CreateSession(id string, meta Metadata, mode Mode) (*Session, error) {
	existing, err := m.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("check session %s: %w", id, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("create session %s: %w", id, ErrSessionExists)
	}

	if m.cfg.MaxSessions > 0 {
		all, err := m.store.All()
		if err == nil && len(all) >= m.cfg.MaxSessions {
			return nil, ErrTooManySessions
		}
	}

	now := time.Now()
	s := &Session{
		ID:              id,
		QuestionnaireID: meta.QuestionnaireID,
		Language:        meta.Language,
		StartTime:       now,
		LastActivity:    now,
		Status:          StatusActive,
		Mode:            mode,
	}
	if mode == ModeVoice {
		s.Status = StatusConnecting
		s.Voice = &VoiceState{}
	}

	if err := m.store.Set(id, s); err != nil {
		return nil, fmt.Errorf("store session %s: %w", id, err)
	}

	logger.Info().
		Str("sessionId", id).
		Str("questionnaireId", meta.QuestionnaireID).
		Str("mode", string(mode)).
		Msg("created session")
	m.emitter.Emit("session.created", map[string]interface{}{
		"sessionId": id,
		"mode":      string(mode),
	})

	return s, nil
}

// RestoreSession re-inserts a preserved session after a client reconnect.
// If the session is still live (the debounced cleanup never fired) the
// stored copy wins and the snapshot is discarded.
func (m *Manager) RestoreSession(s *Session) error {
	existing, err := m.store.Get(s.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		restored := s.Clone()
		restored.LastActivity = time.Now()
		if err := m.store.Set(s.ID, restored); err != nil {
			return fmt.Errorf("restore session %s: %w", s.ID, err)
		}
	} else if err := m.Touch(s.ID); err != nil {
		return err
	}

	logger.Info().Str("sessionId", s.ID).Msg("restored session")
	m.emitter.Emit("session.restored", map[string]interface{}{
		"sessionId": s.ID,
	})
	return nil
}

// GetSession returns a copy of the session or ErrSessionNotFound
func (m *Manager) GetSession(id string) (*Session, error) {
	s, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ListSessions returns copies of all live sessions
func (m *Manager) ListSessions() ([]*Session, error) {
	return m.store.All()
}

// VoiceUpdate adjusts the counters of a voice-backed session
type VoiceUpdate struct {
	RemoteSessionID       *string
	Connected             *bool
	AddConnectionAttempts int
	AddTurns              int
	AddAudioChunksIn      int
	AddAudioChunksOut     int
	AddToolCalls          int
	AddToolLatency        time.Duration
}

// Update is a partial-field patch merged into a session. LastActivity is
// set to now unless the caller supplies one explicitly.
type Update struct {
	Status          *Status
	CurrentIndex    *int
	Language        *string
	LastActivity    *time.Time
	AppendResponses []Response
	AppendTurns     []Turn
	Voice           *VoiceUpdate
}

// UpdateSession merges the patch into a fresh copy and writes it back.
// Updates for the same id are serialized; a status patch must satisfy the
// state machine.
func (m *Manager) UpdateSession(id string, u Update) (*Session, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("update session %s: %w", id, ErrSessionNotFound)
	}

	if u.Status != nil && *u.Status != s.Status {
		if err := validateTransition(s, *u.Status); err != nil {
			return nil, err
		}
		s.Status = *u.Status
		m.emitter.Emit("session.transition", map[string]interface{}{
			"sessionId": id,
			"status":    string(*u.Status),
		})
	}
	if u.CurrentIndex != nil {
		s.CurrentIndex = *u.CurrentIndex
	}
	if u.Language != nil {
		s.Language = *u.Language
	}
	if len(u.AppendResponses) > 0 {
		s.Responses = append(s.Responses, u.AppendResponses...)
	}
	if len(u.AppendTurns) > 0 {
		s.Turns = append(s.Turns, u.AppendTurns...)
	}
	if u.Voice != nil {
		if s.Voice == nil {
			return nil, fmt.Errorf("voice update on plain session %s: %w", id, ErrInvalidTransition)
		}
		v := u.Voice
		if v.RemoteSessionID != nil {
			s.Voice.RemoteSessionID = *v.RemoteSessionID
		}
		if v.Connected != nil {
			s.Voice.Connected = *v.Connected
		}
		s.Voice.ConnectionAttempts += v.AddConnectionAttempts
		s.Voice.TurnCount += v.AddTurns
		s.Voice.AudioChunksIn += v.AddAudioChunksIn
		s.Voice.AudioChunksOut += v.AddAudioChunksOut
		s.Voice.ToolCalls += v.AddToolCalls
		s.Voice.ToolLatency += v.AddToolLatency
	}

	if u.LastActivity != nil {
		s.LastActivity = *u.LastActivity
	} else {
		s.LastActivity = time.Now()
	}

	if err := m.store.Set(id, s); err != nil {
		return nil, fmt.Errorf("store session %s: %w", id, err)
	}
	return s, nil
}

// Transition moves a session through its state machine
func (m *Manager) Transition(id string, to Status) (*Session, error) {
	return m.UpdateSession(id, Update{Status: &to})
}

// Touch bumps a session's last-activity time
func (m *Manager) Touch(id string) error {
	_, err := m.UpdateSession(id, Update{})
	return err
}

// DeleteSession removes the session from the store. Telemetry is
// best-effort and never blocks or fails the deletion.
func (m *Manager) DeleteSession(id string) error {
	s, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("delete session %s: %w", id, ErrSessionNotFound)
	}

	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.dropLock(id)

	logger.Info().Str("sessionId", id).Str("status", string(s.Status)).Msg("deleted session")
	m.emitter.Emit("session.deleted", map[string]interface{}{
		"sessionId": id,
		"status":    string(s.Status),
	})
	return nil
}

// validateTransition enforces the voice session state machine:
// connecting → active → {completed, terminated, abandoned, error}.
// Terminal states accept nothing; connecting exists only for voice sessions.
func validateTransition(s *Session, to Status) error {
	if s.Status.Terminal() {
		return fmt.Errorf("session %s is %s: %w", s.ID, s.Status, ErrInvalidTransition)
	}
	switch to {
	case StatusConnecting:
		return fmt.Errorf("session %s cannot re-enter connecting: %w", s.ID, ErrInvalidTransition)
	case StatusActive:
		if s.Status != StatusConnecting {
			return fmt.Errorf("session %s cannot activate from %s: %w", s.ID, s.Status, ErrInvalidTransition)
		}
		if !s.IsVoice() {
			return fmt.Errorf("session %s is not voice-backed: %w", s.ID, ErrInvalidTransition)
		}
		return nil
	case StatusCompleted, StatusTerminated, StatusAbandoned, StatusError:
		return nil
	}
	return fmt.Errorf("unknown status %q: %w", to, ErrInvalidTransition)
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

func (m *Manager) dropLock(id string) {
	m.locksMu.Lock()
	delete(m.locks, id)
	m.locksMu.Unlock()
}

// runInactiveSweep closes sessions idle past the inactive threshold.
// Each idle session first gets a bounded graceful close; timeout or error
// falls back to forced removal so one stuck session never halts the sweep.
func (m *Manager) runInactiveSweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.InactiveSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			logger.Debug().Msg("inactive sweep stopping")
			return
		case <-ticker.C:
			m.sweepIdle(m.cfg.InactiveThreshold, "inactive")
		}
	}
}

// runStaleSweep is the legacy safety net with a much larger threshold.
// It makes its own pass and is idempotent against sessions the inactive
// sweep already removed.
func (m *Manager) runStaleSweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.StaleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			logger.Debug().Msg("stale sweep stopping")
			return
		case <-ticker.C:
			m.sweepIdle(m.cfg.StaleThreshold, "stale")
		}
	}
}

func (m *Manager) sweepIdle(threshold time.Duration, kind string) {
	sessions, err := m.store.All()
	if err != nil {
		logger.Error().Err(err).Str("sweep", kind).Msg("sweep failed to list sessions")
		return
	}

	now := time.Now()
	swept := 0
	for _, s := range sessions {
		if s.IdleFor(now) < threshold {
			continue
		}
		// Re-read in case the other sweep or a disconnect got here first
		cur, err := m.store.Get(s.ID)
		if err != nil || cur == nil || cur.IdleFor(now) < threshold {
			continue
		}
		m.closeIdle(cur, kind)
		swept++
	}

	if swept > 0 {
		logger.Info().Str("sweep", kind).Int("swept", swept).Msg("sweep completed")
	}
	m.emitter.Emit("sweep.completed", map[string]interface{}{
		"sweep": kind,
		"swept": swept,
	})
}

// closeIdle races the graceful close path against its timeout and falls
// back to forced removal
func (m *Manager) closeIdle(s *Session, kind string) {
	m.closeMu.RLock()
	closeFn := m.closeFn
	m.closeMu.RUnlock()

	if closeFn != nil {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.GracefulCloseTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- closeFn(ctx, s.ID)
		}()

		select {
		case err := <-done:
			if err == nil {
				return
			}
			logger.Warn().Err(err).Str("sessionId", s.ID).Str("sweep", kind).Msg("graceful close failed, forcing removal")
		case <-ctx.Done():
			logger.Warn().Str("sessionId", s.ID).Str("sweep", kind).Msg("graceful close timed out, forcing removal")
		}
	}

	if err := m.store.Delete(s.ID); err != nil {
		logger.Error().Err(err).Str("sessionId", s.ID).Msg("forced removal failed")
		return
	}
	m.dropLock(s.ID)
	m.emitter.Emit("session.swept", map[string]interface{}{
		"sessionId": s.ID,
		"sweep":     kind,
	})
}
