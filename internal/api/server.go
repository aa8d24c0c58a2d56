// Package api implements the HTTP API of the capture service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/courtcapture/internal/config"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	log        logger.Interface
}

// Handlers groups the route handlers wired into the server.
type Handlers struct {
	Captures       *CapturesHandler
	RawLogs        *RawLogsHandler
	Schedules      *SchedulesHandler
	Communications *CommunicationsHandler
	Health         *HealthHandler
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg config.ServerConfig, handlers Handlers, log logger.Interface) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/captures", handlers.Captures.Trigger)
		v1.GET("/captures/:id", handlers.Captures.Get)

		v1.GET("/rawlogs", handlers.RawLogs.List)

		v1.GET("/schedules", handlers.Schedules.List)
		v1.GET("/schedules/:id", handlers.Schedules.Get)
		v1.POST("/schedules", handlers.Schedules.Create)
		v1.PUT("/schedules/:id", handlers.Schedules.Update)
		v1.DELETE("/schedules/:id", handlers.Schedules.Delete)

		v1.POST("/communications/ingest", handlers.Communications.Ingest)

		v1.GET("/health", handlers.Health.Health)
		v1.GET("/metrics", handlers.Health.Metrics)
	}

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log.WithComponent("api"),
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("API server stopping")
	return s.httpServer.Shutdown(ctx)
}
