package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/EvanSchalton/agent-kanban-sub001/internal/errors"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/ws"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleRealtimeStats(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.stats.Snapshot()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRealtimeCleanup(c echo.Context) error {
	timeout := s.config.IdleTimeout

	// timeout_seconds=0 reaps every connection, so only absence falls back
	// to the configured idle timeout.
	if raw := c.QueryParam("timeout_seconds"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			return apperrors.ValidationError("invalid timeout_seconds").WithField("timeout_seconds", raw)
		}
		timeout = time.Duration(seconds) * time.Second
	}

	removed := s.monitor.CleanupInactive(timeout)

	response := map[string]any{
		"removed":         removed,
		"timeout_seconds": timeout.Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "ip", ip, "reason", string(reason))

		if reason == ws.RejectGlobalLimit {
			return apperrors.UnavailableError("connection capacity reached")
		}
		return apperrors.RateLimitedError("too many connections").WithField("reason", string(reason))
	}

	s.observeLimits()
	defer func() {
		s.limits.Release(ip)
		s.observeLimits()
	}()

	s.websocketHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}

// handleSocketIO serves the Socket.IO bridge. Polling transports issue many
// short HTTP requests per session, so the connection limiter does not apply
// here; it would count each poll as a fresh connection.
func (s *Server) handleSocketIO(c echo.Context) error {
	s.socketIOHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *Server) observeLimits() {
	metrics.WebSocketConnectionCapacity.Set(s.limits.CapacityPct())
	metrics.WebSocketUniqueIPs.Set(float64(s.limits.UniqueIPs()))
}
