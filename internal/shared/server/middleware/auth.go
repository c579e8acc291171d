package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"credit-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userIDHeader = "X-User-Id"
	maxUserIDLen = 200
)

// Identity trusts the X-User-Id header set by the upstream gateway and stores
// it in context. Requests without one are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" || len(userID) > maxUserIDLen {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing identity", nil)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
