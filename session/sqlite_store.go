package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxform/voxform/db"
)

// SQLiteStore is a persistent Store backend over the live_sessions table.
// Serialization and TTL are owned here; callers see the same copy-in/copy-out
// contract as MemoryStore. The TTL only matters when a process dies without
// deleting its sessions — the sweeps never see those entries again otherwise.
type SQLiteStore struct {
	ttl time.Duration
}

// NewSQLiteStore creates a store whose entries expire ttl after their last write
func NewSQLiteStore(ttl time.Duration) *SQLiteStore {
	return &SQLiteStore{ttl: ttl}
}

// Set serializes and stores the session
func (s *SQLiteStore) Set(id string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("serialize session %s: %w", id, err)
	}
	return db.SetLiveSession(id, string(data), s.ttl.Milliseconds())
}

// Get returns a deserialized copy of the session, or nil if absent
func (s *SQLiteStore) Get(id string) (*Session, error) {
	data, err := db.GetLiveSession(id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal([]byte(*data), &sess); err != nil {
		return nil, fmt.Errorf("deserialize session %s: %w", id, err)
	}
	return &sess, nil
}

// Delete removes the session; absent ids are a no-op
func (s *SQLiteStore) Delete(id string) error {
	return db.DeleteLiveSession(id)
}

// All returns deserialized copies of every unexpired session
func (s *SQLiteStore) All() ([]*Session, error) {
	rows, err := db.AllLiveSessions()
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(rows))
	for _, data := range rows {
		var sess Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("deserialize session: %w", err)
		}
		out = append(out, &sess)
	}
	return out, nil
}
