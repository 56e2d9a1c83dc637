package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/app"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/config"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/ws"
	"github.com/labstack/echo/v4"
)

type Server struct {
	echo   *echo.Echo
	config *config.Config

	service *app.Service

	websocketHandler http.Handler
	socketIOHandler  http.Handler

	limits   *ws.ConnectionLimits
	registry *realtime.Registry
	monitor  *realtime.Monitor
	stats    *realtime.StatsReporter

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(
	cfg *config.Config,
	service *app.Service,
	websocketHandler http.Handler,
	socketIOHandler http.Handler,
	limits *ws.ConnectionLimits,
	registry *realtime.Registry,
	monitor *realtime.Monitor,
	stats *realtime.StatsReporter,
	healthChecks []HealthCheck,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		service:          service,
		websocketHandler: websocketHandler,
		socketIOHandler:  socketIOHandler,
		limits:           limits,
		registry:         registry,
		monitor:          monitor,
		stats:            stats,
		healthChecks:     healthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP listener and then drains the registry. Hijacked
// websocket connections outlive echo's shutdown, so each one is closed
// explicitly once the listener has stopped accepting.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	if closed := s.registry.CloseAll(); closed > 0 {
		slog.Info("Closed remaining connections", "count", closed)
	}
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
