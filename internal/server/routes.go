package server

import (
	"log/slog"

	apperrors "github.com/EvanSchalton/agent-kanban-sub001/internal/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(correlationMiddleware)
	s.echo.Use(apperrors.Middleware())

	s.registerHealthRoutes()
	s.registerBoardRoutes()
	s.registerTicketRoutes()
	s.registerCommentRoutes()
	s.registerRealtimeRoutes()
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("Request", attrs...)
			return nil
		},
	})
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) registerBoardRoutes() {
	s.echo.POST("/api/boards", s.handleCreateBoard)
	s.echo.GET("/api/boards", s.handleListBoards)
	s.echo.GET("/api/boards/:id", s.handleGetBoard)
	s.echo.PUT("/api/boards/:id", s.handleUpdateBoard)
	s.echo.DELETE("/api/boards/:id", s.handleDeleteBoard)
	s.echo.GET("/api/boards/:id/summary", s.handleBoardSummary)
	s.echo.GET("/api/boards/:id/statistics", s.handleBoardStatistics)
}

func (s *Server) registerTicketRoutes() {
	s.echo.POST("/api/boards/:board_id/tickets", s.handleCreateTicket)
	s.echo.GET("/api/boards/:board_id/tickets", s.handleListTickets)
	s.echo.GET("/api/tickets/:id", s.handleGetTicket)
	s.echo.PUT("/api/tickets/:id", s.handleUpdateTicket)
	s.echo.DELETE("/api/tickets/:id", s.handleDeleteTicket)
	s.echo.POST("/api/tickets/:id/move", s.handleMoveTicket)
	s.echo.GET("/api/tickets/:id/history", s.handleTicketHistory)
}

func (s *Server) registerCommentRoutes() {
	s.echo.POST("/api/tickets/:id/comments", s.handleAddComment)
	s.echo.GET("/api/tickets/:id/comments", s.handleListComments)
	s.echo.DELETE("/api/comments/:id", s.handleDeleteComment)
}

func (s *Server) registerRealtimeRoutes() {
	s.echo.GET("/api/realtime/stats", s.handleRealtimeStats)
	s.echo.POST("/api/realtime/cleanup", s.handleRealtimeCleanup)
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/socket.io/", s.handleSocketIO)
}
