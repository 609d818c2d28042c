package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	principalHeader = "X-User-ID"
	principalKey    = "principal"
)

// PrincipalMiddleware reads the caller identity set by the upstream auth
// layer and rejects requests without one.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(principalHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + principalHeader})
			return
		}
		c.Set(principalKey, userID)
		c.Next()
	}
}

// Principal returns the caller identity, or "" outside PrincipalMiddleware.
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}
