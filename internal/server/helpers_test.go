package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/app"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/cache"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/config"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/socketio"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/store"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/ws"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

type testEnv struct {
	srv      *Server
	registry *realtime.Registry
}

// newTestEnv builds a server on the in-memory store with the realtime core
// wired for real. The clock is injected: API tests run on a fake clock,
// WebSocket tests use a real one because connection read deadlines reach
// the OS.
func newTestEnv(t *testing.T, clock clockwork.Clock, opts ...func(*Server)) *testEnv {
	t.Helper()

	st := store.New()
	registry := realtime.NewRegistry(clock)
	broadcaster := realtime.NewBroadcaster(registry, clock)
	monitor := realtime.NewMonitor(registry, broadcaster, clock, realtime.MonitorConfig{
		ProbeInterval:    30 * time.Second,
		HeartbeatTimeout: time.Minute,
		IdleTimeout:      5 * time.Minute,
	})
	summaries := cache.NewMemory(clock, time.Minute)
	service := app.NewService(st.Boards(), st.Tickets(), st.Comments(), st.History(), broadcaster, summaries, clock)

	checkOrigin := ws.NewCheckOrigin("", true)
	adapter := ws.NewAdapter(registry, broadcaster, monitor, clock, checkOrigin)
	bridge := socketio.NewBridge(registry, monitor, clock, checkOrigin, socketio.Config{})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           &config.Config{AppEnv: "test", Port: "0", IdleTimeout: 5 * time.Minute},
		service:          service,
		websocketHandler: http.HandlerFunc(adapter.Handle),
		socketIOHandler:  http.HandlerFunc(bridge.Handle),
		limits:           ws.NewConnectionLimits(100, 10, 100, 100),
		registry:         registry,
		monitor:          monitor,
		stats:            realtime.NewStatsReporter(registry),
		startTime:        time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	// Register routes so endpoints are available for testing
	srv.registerRoutes()

	return &testEnv{srv: srv, registry: registry}
}

func newTestServer(t *testing.T, opts ...func(*Server)) *Server {
	t.Helper()
	return newTestEnv(t, clockwork.NewFakeClock(), opts...).srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withLimits(limits *ws.ConnectionLimits) func(*Server) {
	return func(s *Server) {
		s.limits = limits
	}
}

func withService(service *app.Service) func(*Server) {
	return func(s *Server) {
		s.service = service
	}
}

// doJSON runs one request through the full router, middleware included.
func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func createTestBoard(t *testing.T, srv *Server, name string) boardResponse {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/boards", map[string]any{
		"name":    name,
		"columns": []string{"todo", "in_progress", "done"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var board boardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	return board
}

func createTestTicket(t *testing.T, srv *Server, boardID int64, title string) ticketResponse {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/boards/%d/tickets", boardID), map[string]any{
		"title": title,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	return ticket
}

// --- Failure stubs ---

var errRepoDown = errors.New("repository unavailable")

type failingBoardRepo struct{}

func (failingBoardRepo) Create(context.Context, *domain.Board) error           { return errRepoDown }
func (failingBoardRepo) GetByID(context.Context, int64) (*domain.Board, error) { return nil, errRepoDown }
func (failingBoardRepo) List(context.Context) ([]*domain.Board, error)         { return nil, errRepoDown }
func (failingBoardRepo) Update(context.Context, *domain.Board) error           { return errRepoDown }
func (failingBoardRepo) Delete(context.Context, int64) error                   { return errRepoDown }

// newFailingService builds a service whose board repository always errors,
// for exercising the internal error paths.
func newFailingService(t *testing.T) *app.Service {
	t.Helper()

	clock := clockwork.NewFakeClock()
	st := store.New()
	registry := realtime.NewRegistry(clock)
	return app.NewService(
		failingBoardRepo{},
		st.Tickets(),
		st.Comments(),
		st.History(),
		realtime.NewBroadcaster(registry, clock),
		cache.NewMemory(clock, time.Minute),
		clock,
	)
}
