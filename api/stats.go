package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voxform/voxform/db"
	"github.com/voxform/voxform/log"
	"github.com/voxform/voxform/session"
)

// Stats is the operational snapshot served by GET /api/stats
type Stats struct {
	LiveSessions      int              `json:"liveSessions"`
	ByStatus          map[string]int   `json:"byStatus"`
	PendingToolCalls  int              `json:"pendingToolCalls"`
	Reconnectable     int              `json:"reconnectable"`
	OpenStreams       int              `json:"openStreams"`
	CompletedSessions int64            `json:"completedSessions"`
	LifecycleCounters map[string]int64 `json:"lifecycleCounters"`
}

// GetStats handles GET /api/stats
func (h *Handlers) GetStats(c *gin.Context) {
	stats := Stats{
		ByStatus:          map[string]int{},
		PendingToolCalls:  h.tracker.Count(),
		Reconnectable:     h.ledger.Len(),
		OpenStreams:       h.streams.Len(),
		LifecycleCounters: h.telemetry.Counters(),
	}

	sessions, err := h.sessions.ListSessions()
	if err != nil {
		RespondInternalError(c, "failed to list sessions")
		return
	}
	stats.LiveSessions = len(sessions)
	for _, s := range sessions {
		stats.ByStatus[string(s.Status)]++
	}

	completed, err := db.Count(`
		SELECT COUNT(*) FROM session_records WHERE status = ?
	`, string(session.StatusCompleted))
	if err != nil {
		log.Error().Err(err).Msg("failed to count completed sessions")
		completed = 0
	}
	stats.CompletedSessions = completed

	RespondData(c, stats)
}
