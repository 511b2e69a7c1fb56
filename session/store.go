package session

import "sync"

// Store is the keyed mapping from session id to session state.
// Every Set and every returned value crosses a copy boundary: mutating a
// value obtained from Get never affects the stored copy. Absence is
// represented by a nil session, never by an error.
type Store interface {
	Set(id string, s *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error
	All() ([]*Session, error)
}

// MemoryStore is the single-process Store backend
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Set stores a copy of the session under id
func (m *MemoryStore) Set(id string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s.Clone()
	return nil
}

// Get returns a copy of the stored session, or nil if absent
func (m *MemoryStore) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// Delete removes the session; deleting an absent id is a no-op
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// All returns copies of every stored session
func (m *MemoryStore) All() ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}
