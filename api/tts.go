package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxform/voxform/session"
)

type synthesizeRequest struct {
	Text string `json:"text" binding:"required"`
}

// SynthesizeQuestion handles POST /api/sessions/:id/question-audio
//
// Plain-mode clients fetch spoken question prompts here; voice sessions
// get audio over the realtime stream instead.
func (h *Handlers) SynthesizeQuestion(c *gin.Context) {
	if h.voice == nil {
		RespondUnavailable(c, "speech synthesis is not configured")
		return
	}

	id := c.Param("id")
	if _, err := h.sessions.GetSession(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			RespondNotFound(c, "session not found")
			return
		}
		RespondInternalError(c, "failed to load session")
		return
	}

	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "text is required")
		return
	}

	audio, err := h.voice.SynthesizeQuestion(c.Request.Context(), req.Text)
	if err != nil {
		RespondInternalError(c, "speech synthesis failed")
		return
	}

	// Synthesis counts as session activity for the inactivity sweep
	_ = h.sessions.Touch(id)

	c.Data(http.StatusOK, "audio/mpeg", audio)
}
