package db

import (
	"database/sql"
)

// SetLiveSession writes the serialized state for a live session.
// ttlMs bounds how long an entry survives a crashed process.
func SetLiveSession(id string, data string, ttlMs int64) error {
	now := NowMs()
	_, err := Run(`
		INSERT INTO live_sessions (id, data, updated_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`, id, data, now, now+ttlMs)
	return err
}

// GetLiveSession returns the serialized state for a live session, or nil
// if absent or expired
func GetLiveSession(id string) (*string, error) {
	return SelectOne(`
		SELECT data FROM live_sessions WHERE id = ? AND expires_at > ?
	`, []QueryParam{id, NowMs()}, func(row *sql.Row) (string, error) {
		var data string
		err := row.Scan(&data)
		return data, err
	})
}

// DeleteLiveSession removes a live session entry
func DeleteLiveSession(id string) error {
	_, err := Run(`DELETE FROM live_sessions WHERE id = ?`, id)
	return err
}

// AllLiveSessions returns the serialized state of every unexpired live session
func AllLiveSessions() ([]string, error) {
	return Select(`
		SELECT data FROM live_sessions WHERE expires_at > ?
	`, []QueryParam{NowMs()}, func(rows *sql.Rows) (string, error) {
		var data string
		err := rows.Scan(&data)
		return data, err
	})
}

// DeleteExpiredLiveSessions removes entries past their TTL
func DeleteExpiredLiveSessions() (int64, error) {
	result, err := Run(`DELETE FROM live_sessions WHERE expires_at <= ?`, NowMs())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
