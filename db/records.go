package db

import (
	"database/sql"
)

// SessionRecord is the durable row written for each session
type SessionRecord struct {
	ID              string
	QuestionnaireID string
	Language        string
	Mode            string
	Status          string
	CurrentIndex    int
	TurnCount       int
	ToolCalls       int
	StartedAt       int64
	EndedAt         int64
	Summary         string
}

// ResponseRecord is one durable answer row
type ResponseRecord struct {
	SessionID  string
	QuestionID string
	Value      string
	RecordedAt int64
}

// TranscriptTurn is one durable conversation turn row
type TranscriptTurn struct {
	SessionID string
	Seq       int
	Role      string
	Text      string
	At        int64
}

// UpsertSessionRecord writes or replaces the durable record for a session
func UpsertSessionRecord(rec SessionRecord) error {
	_, err := Run(`
		INSERT INTO session_records (id, questionnaire_id, language, mode, status, current_index, turn_count, tool_calls, started_at, ended_at, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_index = excluded.current_index,
			turn_count = excluded.turn_count,
			tool_calls = excluded.tool_calls,
			ended_at = excluded.ended_at
	`, rec.ID, rec.QuestionnaireID, rec.Language, rec.Mode, rec.Status,
		rec.CurrentIndex, rec.TurnCount, rec.ToolCalls, rec.StartedAt,
		nullableInt64(rec.EndedAt), rec.Summary)
	return err
}

// GetSessionRecord returns the durable record for a session, or nil
func GetSessionRecord(id string) (*SessionRecord, error) {
	return SelectOne(`
		SELECT id, questionnaire_id, COALESCE(language, ''), mode, status, current_index, turn_count, tool_calls, started_at, COALESCE(ended_at, 0), COALESCE(summary, '')
		FROM session_records WHERE id = ?
	`, []QueryParam{id}, func(row *sql.Row) (SessionRecord, error) {
		var rec SessionRecord
		err := row.Scan(&rec.ID, &rec.QuestionnaireID, &rec.Language, &rec.Mode,
			&rec.Status, &rec.CurrentIndex, &rec.TurnCount, &rec.ToolCalls,
			&rec.StartedAt, &rec.EndedAt, &rec.Summary)
		return rec, err
	})
}

// SaveResponses replaces the durable answer rows for a session
func SaveResponses(sessionID string, responses []ResponseRecord) error {
	return Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM response_records WHERE session_id = ?`, sessionID); err != nil {
			return err
		}
		for _, r := range responses {
			_, err := tx.Exec(`
				INSERT INTO response_records (session_id, question_id, value, recorded_at)
				VALUES (?, ?, ?, ?)
			`, sessionID, r.QuestionID, r.Value, r.RecordedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveTranscript replaces the durable transcript rows for a session
func SaveTranscript(sessionID string, turns []TranscriptTurn) error {
	return Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM transcript_turns WHERE session_id = ?`, sessionID); err != nil {
			return err
		}
		for _, t := range turns {
			_, err := tx.Exec(`
				INSERT INTO transcript_turns (session_id, seq, role, text, at)
				VALUES (?, ?, ?, ?, ?)
			`, sessionID, t.Seq, t.Role, t.Text, t.At)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetResponses returns the durable answer rows for a session in question order
func GetResponses(sessionID string) ([]ResponseRecord, error) {
	return Select(`
		SELECT session_id, question_id, value, recorded_at
		FROM response_records WHERE session_id = ? ORDER BY recorded_at, question_id
	`, []QueryParam{sessionID}, func(rows *sql.Rows) (ResponseRecord, error) {
		var r ResponseRecord
		err := rows.Scan(&r.SessionID, &r.QuestionID, &r.Value, &r.RecordedAt)
		return r, err
	})
}

// GetTranscript returns the durable conversation turns for a session in order
func GetTranscript(sessionID string) ([]TranscriptTurn, error) {
	return Select(`
		SELECT session_id, seq, role, text, at
		FROM transcript_turns WHERE session_id = ? ORDER BY seq
	`, []QueryParam{sessionID}, func(rows *sql.Rows) (TranscriptTurn, error) {
		var t TranscriptTurn
		err := rows.Scan(&t.SessionID, &t.Seq, &t.Role, &t.Text, &t.At)
		return t, err
	})
}

// SetSessionSummary stores the post-session transcript summary
func SetSessionSummary(id, summary string) error {
	_, err := Run(`UPDATE session_records SET summary = ? WHERE id = ?`, summary, id)
	return err
}

func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
