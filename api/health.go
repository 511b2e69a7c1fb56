package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxform/voxform/db"
)

// GetHealth handles GET /api/health
//
// Reports degraded (still 200) when the database is unreachable so load
// balancers keep routing while operators investigate; the WebSocket path
// does not depend on the database until finalize.
func (h *Handlers) GetHealth(c *gin.Context) {
	status := "ok"
	if err := db.GetDB().Ping(); err != nil {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
