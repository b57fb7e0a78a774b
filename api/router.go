package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/api/handler"
	"github.com/use-agent/tubeshim/api/middleware"
	"github.com/use-agent/tubeshim/config"
	"github.com/use-agent/tubeshim/metrics"
	"github.com/use-agent/tubeshim/settings"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health, /metrics and the /youtubei/v1 proxy are outside auth: probes
// and the embedded page cannot present an API key.
//
// proxy and br may be nil; the proxy surface is then not mounted and
// /navigate answers 503. The caller owns rl and closes it on shutdown.
func NewRouter(cfg *config.Config, store *settings.Store, m *metrics.Metrics, rl *middleware.RateLimiter, proxy http.Handler, br handler.Browser, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics(m))

	r.GET("/metrics", gin.WrapH(m.Handler()))

	if proxy != nil {
		r.Any("/youtubei/v1/*path", gin.WrapH(proxy))
	}

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(store, m, br, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys, m))
	}
	protected.Use(rl.Handler())

	// Settings
	protected.GET("/settings", handler.GetSettings(store))
	protected.PUT("/settings", handler.PutSettings(store))

	// Routing and transforms
	protected.POST("/classify", handler.Classify())
	protected.POST("/transform", handler.Transform())

	// Managed browser
	protected.POST("/navigate", handler.Navigate(br))

	return r
}
