package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voxform/voxform/auth"
	"github.com/voxform/voxform/log"
)

// AuthMiddleware returns a Gin middleware that authenticates REST requests
// with the same authenticator the WebSocket gateway uses. In "none" mode
// every request passes.
func AuthMiddleware(authn auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authn.Authenticate(c.Request.Context(), auth.ConnContext{
			RemoteAddr: c.ClientIP(),
			Origin:     c.GetHeader("Origin"),
			Token:      bearerToken(c),
		})
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("request rejected")
			RespondUnauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		if identity != nil {
			c.Set("subject", identity.Subject)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// Browser WebSocket clients cannot set headers; allow ?token=
	return c.Query("token")
}
