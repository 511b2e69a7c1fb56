// Package storage writes durable session artifacts at lifecycle
// boundaries. It owns nothing lifecycle-critical: every call takes a
// continue-on-failure flag, and when set, failures are logged and swallowed.
package storage

import (
	"fmt"

	"github.com/voxform/voxform/db"
	"github.com/voxform/voxform/log"
	"github.com/voxform/voxform/session"
)

var logger = log.GetLogger("storage")

// Recorder persists session records, responses, and transcripts
type Recorder struct{}

// NewRecorder creates a recorder over the application database
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SaveSession writes the durable record for a session
func (r *Recorder) SaveSession(s *session.Session, continueOnFailure bool) error {
	rec := db.SessionRecord{
		ID:              s.ID,
		QuestionnaireID: s.QuestionnaireID,
		Language:        s.Language,
		Mode:            string(s.Mode),
		Status:          string(s.Status),
		CurrentIndex:    s.CurrentIndex,
		StartedAt:       s.StartTime.UnixMilli(),
	}
	if s.Status.Terminal() {
		rec.EndedAt = s.LastActivity.UnixMilli()
	}
	if s.Voice != nil {
		rec.TurnCount = s.Voice.TurnCount
		rec.ToolCalls = s.Voice.ToolCalls
	}

	if err := db.UpsertSessionRecord(rec); err != nil {
		return r.handle(s.ID, "session record", err, continueOnFailure)
	}
	return nil
}

// SaveResponses writes the durable answer rows for a session
func (r *Recorder) SaveResponses(s *session.Session, continueOnFailure bool) error {
	rows := make([]db.ResponseRecord, 0, len(s.Responses))
	for _, resp := range s.Responses {
		rows = append(rows, db.ResponseRecord{
			SessionID:  s.ID,
			QuestionID: resp.QuestionID,
			Value:      resp.Value,
			RecordedAt: resp.RecordedAt.UnixMilli(),
		})
	}

	if err := db.SaveResponses(s.ID, rows); err != nil {
		return r.handle(s.ID, "responses", err, continueOnFailure)
	}
	return nil
}

// SaveTranscript writes the durable conversation turns for a session
func (r *Recorder) SaveTranscript(s *session.Session, continueOnFailure bool) error {
	rows := make([]db.TranscriptTurn, 0, len(s.Turns))
	for i, t := range s.Turns {
		rows = append(rows, db.TranscriptTurn{
			SessionID: s.ID,
			Seq:       i,
			Role:      t.Role,
			Text:      t.Text,
			At:        t.At.UnixMilli(),
		})
	}

	if err := db.SaveTranscript(s.ID, rows); err != nil {
		return r.handle(s.ID, "transcript", err, continueOnFailure)
	}
	return nil
}

// SaveSummary stores a post-session transcript summary
func (r *Recorder) SaveSummary(sessionID, summary string, continueOnFailure bool) error {
	if err := db.SetSessionSummary(sessionID, summary); err != nil {
		return r.handle(sessionID, "summary", err, continueOnFailure)
	}
	return nil
}

func (r *Recorder) handle(sessionID, what string, err error, continueOnFailure bool) error {
	if continueOnFailure {
		logger.Warn().Err(err).Str("sessionId", sessionID).Str("artifact", what).Msg("storage write failed, continuing")
		return nil
	}
	return fmt.Errorf("save %s for session %s: %w", what, sessionID, err)
}
