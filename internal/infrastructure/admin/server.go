// Package admin implements the read-only administrative HTTP surface
// named as an external collaborator in §1 of the core spec: health,
// stats, and config endpoints, secured by an admin bearer token.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signalbroker/internal/core/domain"
	"signalbroker/internal/core/services"
	"signalbroker/internal/infrastructure/middleware"
	"signalbroker/internal/infrastructure/monitoring"
	"signalbroker/pkg/config"
)

// StatsSource is the read-only view the admin surface needs from the
// core services; it depends on method sets, not concrete types, so it
// never has to import the transport package.
type StatsSource interface {
	Stats(totalSubscriptions int) domain.ConnectionStats
	StreamerIDs() []string
}

type subscriptionCounter interface {
	TotalSubscriptions() int
}

// Server is the gin-based admin HTTP surface.
type Server struct {
	engine *gin.Engine
}

// NewServer wires health/stats/config endpoints behind the rate limiter
// and (for stats/config) the admin auth middleware.
func NewServer(cfg *config.Config, registry StatsSource, graph subscriptionCounter, health *monitoring.HealthChecker, authService *services.AdminAuthService, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware(logger))
	engine.Use(middleware.ErrorHandlerMiddleware(logger))
	engine.Use(middleware.TracingMiddleware())
	engine.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	engine.GET("/health", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	protected := engine.Group("/api")
	protected.Use(middleware.AuthMiddleware(authService))

	protected.GET("/stats", func(c *gin.Context) {
		stats := registry.Stats(graph.TotalSubscriptions())
		c.JSON(http.StatusOK, stats)
	})

	protected.GET("/streamers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ids": registry.StreamerIDs()})
	})

	protected.GET("/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"host":                     cfg.Signal.Host,
			"unifiedPort":              cfg.Signal.UnifiedPort,
			"enableUnifiedPort":        cfg.Signal.EnableUnifiedPort,
			"httpPort":                 cfg.Signal.HTTPPort,
			"maxSubscribers":           cfg.Signal.MaxSubscribers,
			"enableSfu":                cfg.Signal.EnableSFU,
			"maxFrameSize":             cfg.Signal.MaxFrameSize,
			"pingIntervalSeconds":      cfg.Signal.PingIntervalSeconds,
			"connectionTimeoutSeconds": cfg.Signal.ConnectionTimeoutSeconds,
			"playerPath":               cfg.Signal.PlayerPath,
			"streamerPath":             cfg.Signal.StreamerPath,
			"sfuPath":                  cfg.Signal.SFUPath,
			"unrealPath":               cfg.Signal.UnrealPath,
		})
	})

	return &Server{engine: engine}
}

// Handler returns the http.Handler to mount on the configured HTTP port.
func (s *Server) Handler() http.Handler {
	return s.engine
}
