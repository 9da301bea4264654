package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvadapt-backend/internal/generation"
	"cvadapt-backend/internal/resumes"
	"cvadapt-backend/internal/shared/config"
	"cvadapt-backend/internal/shared/metrics"
	"cvadapt-backend/internal/shared/server/middleware"
	"cvadapt-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router exposes. Handlers are built by
// bootstrap, the router only registers them.
type RouterDeps struct {
	Config            config.Config
	ResumeHandler     *resumes.Handler
	GenerationHandler *generation.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(rateLimitConfig()),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	registerMeRoutes(api)
	if deps.ResumeHandler != nil {
		deps.ResumeHandler.RegisterRoutes(api)
	}
	if deps.GenerationHandler != nil {
		deps.GenerationHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimitConfig throttles expensive operations per user. Status polling
// runs at a higher rate than task creation, the SSE frontend falls back to
// polling when redis is off.
func rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"CREATE":  {Rate: 0.2, Burst: 3},
			"POLLING": {Rate: 5, Burst: 10},
		},
		GroupFor: func(c *gin.Context) string {
			path := c.Request.URL.Path
			switch {
			case c.Request.Method == http.MethodPost && path == "/api/v1/generation-tasks":
				return "CREATE"
			case strings.HasSuffix(path, "/status"):
				return "POLLING"
			default:
				return ""
			}
		},
	}
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
