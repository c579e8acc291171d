package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods  = "GET,POST,OPTIONS"
	corsAllowHeaders  = "Content-Type, X-User-Id, X-Request-Id"
	corsExposeHeaders = "X-Request-Id, Retry-After"
	corsMaxAge        = "600"
)

type originSet struct {
	any     bool
	allowed map[string]bool
}

func newOriginSet(origins []string) originSet {
	set := originSet{allowed: make(map[string]bool)}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			set.any = true
		default:
			set.allowed[o] = true
		}
	}
	return set
}

func (s originSet) permits(origin string) bool {
	return origin != "" && (s.any || s.allowed[origin])
}

// CORS answers preflights with 204 and reflects allowed origins. "*" in the
// list allows every origin. Credentials are only allowed for listed origins.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := newOriginSet(allowedOrigins)

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origins.permits(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if origins.allowed[origin] {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
