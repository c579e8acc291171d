package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"credit-backend/internal/services/health"
	"credit-backend/internal/shared/config"
	"credit-backend/internal/shared/metrics"
	"credit-backend/internal/shared/server/middleware"
	"credit-backend/internal/shared/server/respond"
)

// RouteRegistrar attaches a handler's routes to the authenticated group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps are the handlers mounted under /api/v1.
type RouterDeps struct {
	Config  config.Config
	Reports RouteRegistrar
	Uploads RouteRegistrar
	// Health reports database reachability; nil reports in-memory storage.
	Health *health.Service
	// RateLimits overrides DefaultRateLimits when set.
	RateLimits map[string]middleware.RateLimitRule
}

// DefaultRateLimits are per caller. Job polling gets a larger bucket.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		middleware.GroupDefault: {Rate: 5, Burst: 20},
		middleware.GroupPolling: {Rate: 10, Burst: 40},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	r.GET("/metrics", metrics.Handler())

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits()
	}
	authed := api.Group("")
	authed.Use(
		middleware.Identity(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: rules,
			GroupFor: middleware.GroupByRoute(map[string]string{
				"GET /api/v1/jobs/:id": middleware.GroupPolling,
			}),
		}),
	)
	registerMeRoutes(authed)
	if deps.Reports != nil {
		deps.Reports.RegisterRoutes(authed)
	}
	if deps.Uploads != nil {
		deps.Uploads.RegisterRoutes(authed)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
