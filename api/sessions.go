package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voxform/voxform/db"
	"github.com/voxform/voxform/session"
)

// SessionSummary is the list-view projection of a live session
type SessionSummary struct {
	ID              string         `json:"id"`
	QuestionnaireID string         `json:"questionnaireId"`
	Status          session.Status `json:"status"`
	Mode            session.Mode   `json:"mode"`
	CurrentIndex    int            `json:"currentIndex"`
	Responses       int            `json:"responses"`
	StartTime       time.Time      `json:"startTime"`
	LastActivity    time.Time      `json:"lastActivity"`
	VoiceConnected  bool           `json:"voiceConnected,omitempty"`
}

func summarize(s *session.Session) SessionSummary {
	sum := SessionSummary{
		ID:              s.ID,
		QuestionnaireID: s.QuestionnaireID,
		Status:          s.Status,
		Mode:            s.Mode,
		CurrentIndex:    s.CurrentIndex,
		Responses:       len(s.Responses),
		StartTime:       s.StartTime,
		LastActivity:    s.LastActivity,
	}
	if s.Voice != nil {
		sum.VoiceConnected = s.Voice.Connected
	}
	return sum
}

// ListSessions handles GET /api/sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions()
	if err != nil {
		RespondInternalError(c, "failed to list sessions")
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, summarize(s))
	}
	RespondList(c, summaries)
}

type createSessionRequest struct {
	QuestionnaireID string `json:"questionnaireId" binding:"required"`
	Language        string `json:"language"`
}

// CreateSession handles POST /api/sessions
//
// Creates a plain-mode session driven over REST. Voice sessions are never
// created here; they are minted by the WebSocket gateway on connect.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "questionnaireId is required")
		return
	}

	meta := session.Metadata{
		QuestionnaireID: req.QuestionnaireID,
		Language:        req.Language,
	}
	s, err := h.sessions.CreateSession(uuid.New().String(), meta, session.ModePlain)
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			RespondTooMany(c, "session capacity reached")
			return
		}
		RespondInternalError(c, "failed to create session")
		return
	}
	RespondCreated(c, s)
}

// GetSession handles GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.sessions.GetSession(c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			RespondNotFound(c, "session not found")
			return
		}
		RespondInternalError(c, "failed to load session")
		return
	}
	RespondData(c, s)
}

// DeleteSession handles DELETE /api/sessions/:id
//
// Runs the full cleanup pipeline (cancel pending tools, close any AI
// stream, remove the session) rather than a bare store delete.
func (h *Handlers) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.sessions.GetSession(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			RespondNotFound(c, "session not found")
			return
		}
		RespondInternalError(c, "failed to load session")
		return
	}

	if err := h.cleanup.CleanupSession(c.Request.Context(), id); err != nil {
		RespondInternalError(c, "cleanup failed")
		return
	}
	RespondNoContent(c)
}

type recordResponseRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	Value      string `json:"value" binding:"required"`
}

// RecordResponse handles POST /api/sessions/:id/responses
//
// The REST path for plain-mode sessions. Voice sessions record answers
// through the record_response tool instead.
func (h *Handlers) RecordResponse(c *gin.Context) {
	var req recordResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "questionId and value are required")
		return
	}

	index, err := h.sessions.RecordResponse(c.Param("id"), req.QuestionID, req.Value)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			RespondNotFound(c, "session not found")
			return
		}
		RespondInternalError(c, "failed to record response")
		return
	}
	RespondData(c, gin.H{"currentIndex": index})
}

// AdvanceSession handles POST /api/sessions/:id/advance
func (h *Handlers) AdvanceSession(c *gin.Context) {
	index, err := h.sessions.AdvanceQuestion(c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			RespondNotFound(c, "session not found")
			return
		}
		RespondInternalError(c, "failed to advance session")
		return
	}
	RespondData(c, gin.H{"currentIndex": index})
}

// CompleteSession handles POST /api/sessions/:id/complete
func (h *Handlers) CompleteSession(c *gin.Context) {
	if err := h.sessions.CompleteSurvey(c.Param("id")); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			RespondNotFound(c, "session not found")
			return
		}
		if errors.Is(err, session.ErrInvalidTransition) {
			RespondConflict(c, "session already ended")
			return
		}
		RespondInternalError(c, "failed to complete session")
		return
	}
	RespondNoContent(c)
}

// ArchivedSession is the durable record plus its saved artifacts
type ArchivedSession struct {
	Record     *db.SessionRecord   `json:"record"`
	Responses  []db.ResponseRecord `json:"responses"`
	Transcript []db.TranscriptTurn `json:"transcript"`
}

// GetArchivedSession handles GET /api/archive/:id
//
// Serves the persisted record after the live session is gone.
func (h *Handlers) GetArchivedSession(c *gin.Context) {
	id := c.Param("id")
	rec, err := db.GetSessionRecord(id)
	if err != nil {
		RespondInternalError(c, "failed to load session record")
		return
	}
	if rec == nil {
		RespondNotFound(c, "no record for session")
		return
	}

	responses, err := db.GetResponses(id)
	if err != nil {
		RespondInternalError(c, "failed to load responses")
		return
	}
	transcript, err := db.GetTranscript(id)
	if err != nil {
		RespondInternalError(c, "failed to load transcript")
		return
	}

	RespondData(c, ArchivedSession{Record: rec, Responses: responses, Transcript: transcript})
}
