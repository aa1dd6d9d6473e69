// Package http provides the operational HTTP server: health, readiness and the
// delivery administration API.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/mailpipe/internal/config"
	deliveryHTTP "github.com/allisson/mailpipe/internal/delivery/http"
	deliveryService "github.com/allisson/mailpipe/internal/delivery/service"
	"github.com/allisson/mailpipe/internal/metrics"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	server  *http.Server
	router  *gin.Engine
	logger  *slog.Logger
	db      *sql.DB
	cache   Pinger
	breaker deliveryService.CircuitBreaker
}

// NewServer creates a new HTTP server. db may be nil, in which case readiness always fails.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: newHTTPServer(host, port, nil),
	}
}

// SetCache attaches the cache to the readiness report. A cache outage is
// reported as degraded and never makes the service unready.
func (s *Server) SetCache(cache Pinger) {
	s.cache = cache
}

// SetupRouter configures the Gin router with middleware and routes.
// metricsProvider may be nil to disable HTTP metrics.
func (s *Server) SetupRouter(
	cfg *config.Config,
	breaker deliveryService.CircuitBreaker,
	circuitBreakerHandler *deliveryHTTP.CircuitBreakerHandler,
	deliveryLogHandler *deliveryHTTP.DeliveryLogHandler,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	s.breaker = breaker

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.Use(CustomLoggerMiddleware(s.logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}
	{
		v1.GET("/circuit-breaker", circuitBreakerHandler.GetHandler)
		v1.PUT("/circuit-breaker", circuitBreakerHandler.UpdateHandler)
		v1.GET("/delivery-logs", deliveryLogHandler.ListHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.router != nil {
		s.server.Handler = s.router
	}
	return listenAndServe(s.server, s.logger, "http server")
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness and, when a breaker is attached, its state.
func (s *Server) healthHandler(c *gin.Context) {
	response := gin.H{"status": "healthy"}
	if s.breaker != nil {
		snapshot := s.breaker.Snapshot()
		response["circuit_breaker"] = string(snapshot.State)
		response["failures"] = snapshot.FailureCount
	}
	c.JSON(http.StatusOK, response)
}

// readinessHandler pings the database and, when attached, the cache.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{"database": "ok"}
	if s.cache != nil {
		components["cache"] = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			components["cache"] = "degraded"
		}
	}

	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
