package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voxform/voxform/auth"
)

// SetupRoutes configures all API routes.
//
// The WebSocket entry point is passed in as a plain handler so this
// package does not import the gateway.
func SetupRoutes(r *gin.Engine, h *Handlers, authn auth.Authenticator, wsHandler gin.HandlerFunc) {
	// Health is unauthenticated for load balancers
	r.GET("/api/health", h.GetHealth)

	// The gateway runs its own auth before upgrading
	r.GET("/ws/session", wsHandler)

	api := r.Group("/api")
	api.Use(AuthMiddleware(authn))

	// Live sessions
	api.GET("/sessions", h.ListSessions)
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)

	// Plain-mode survey driving
	api.POST("/sessions/:id/responses", h.RecordResponse)
	api.POST("/sessions/:id/advance", h.AdvanceSession)
	api.POST("/sessions/:id/complete", h.CompleteSession)
	api.POST("/sessions/:id/question-audio", h.SynthesizeQuestion)

	// Durable records for sessions that already ended
	api.GET("/archive/:id", h.GetArchivedSession)

	// Operational snapshot
	api.GET("/stats", h.GetStats)
}
