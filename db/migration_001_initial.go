package db

import (
	"database/sql"
)

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "Initial schema - session records, responses, transcripts, live sessions",
		Up:          migration001_initial,
	})
}

func migration001_initial(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Durable record of each completed or abandoned session
	_, err = tx.Exec(`
		CREATE TABLE session_records (
			id TEXT PRIMARY KEY,
			questionnaire_id TEXT NOT NULL,
			language TEXT,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			current_index INTEGER NOT NULL DEFAULT 0,
			turn_count INTEGER NOT NULL DEFAULT 0,
			tool_calls INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			summary TEXT
		)
	`)
	if err != nil {
		return err
	}

	// One row per recorded answer
	_, err = tx.Exec(`
		CREATE TABLE response_records (
			session_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			value TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (session_id, question_id)
		)
	`)
	if err != nil {
		return err
	}

	// Ordered conversation turns for a session
	_, err = tx.Exec(`
		CREATE TABLE transcript_turns (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			at INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		)
	`)
	if err != nil {
		return err
	}

	// Serialized live session state for the persistent Store backend.
	// expires_at bounds entries left behind by a crashed process.
	_, err = tx.Exec(`
		CREATE TABLE live_sessions (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`CREATE INDEX idx_response_records_session ON response_records(session_id)`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX idx_transcript_turns_session ON transcript_turns(session_id)`)
	if err != nil {
		return err
	}

	return tx.Commit()
}
