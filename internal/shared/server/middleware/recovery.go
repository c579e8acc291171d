package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"credit-backend/internal/shared/server/respond"
	"credit-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error envelope and logs it with
// the request, caller and pipeline identifiers known so far.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"panic":      rec,
				"stack":      string(debug.Stack()),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
			}
			if userID := UserIDFromContext(c); userID != "" {
				fields["user_id"] = userID
			}
			for _, key := range []string{ReportIDKey, JobIDKey} {
				if v := c.GetString(key); v != "" {
					fields[key] = v
				}
			}
			telemetry.Error("http.panic", fields)
			if !c.Writer.Written() {
				respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "unexpected server error", nil)
			}
			c.Abort()
		}()
		c.Next()
	}
}
