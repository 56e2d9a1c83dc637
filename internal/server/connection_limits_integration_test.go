package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The dial tests run against a live listener, so they use a real clock: the
// adapter arms read deadlines on the underlying connection.

func wsBaseURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws"
}

func TestConnectionLimitsIntegration_GlobalLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newTestEnv(t, clockwork.NewRealClock(), withLimits(ws.NewConnectionLimits(3, 100, 100, 100)))

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()
	wsURL := wsBaseURL(ts)

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err, "Connection %d should succeed", i+1)
		conns = append(conns, conn)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err, "4th connection should fail")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	for _, c := range conns {
		c.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

func TestConnectionLimitsIntegration_PerIPLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newTestEnv(t, clockwork.NewRealClock(), withLimits(ws.NewConnectionLimits(100, 2, 100, 100)))

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()
	wsURL := wsBaseURL(ts)

	// All connections come from 127.0.0.1.
	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err, "Connection %d should succeed", i+1)
		conns = append(conns, conn)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err, "3rd connection from same IP should fail")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	for _, c := range conns {
		c.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

func TestConnectionLimitsIntegration_RateLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newTestEnv(t, clockwork.NewRealClock(), withLimits(ws.NewConnectionLimits(100, 100, 2, 2)))

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()
	wsURL := wsBaseURL(ts)

	// Exhaust the burst. Closing frees slots but not rate tokens.
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err, "Connection %d should succeed (burst)", i+1)
		conn.Close()
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err, "3rd rapid connection should fail")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// One token refills after half a second at 2/sec.
	time.Sleep(600 * time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "Connection after rate limit refill should succeed")
	if conn != nil {
		conn.Close()
	}
}

func TestConnectionLimitsIntegration_ReleaseOnDisconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newTestEnv(t, clockwork.NewRealClock(), withLimits(ws.NewConnectionLimits(2, 2, 100, 100)))

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()
	wsURL := wsBaseURL(ts)

	conn1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	conn1.Close()
	time.Sleep(100 * time.Millisecond) // Give handler time to cleanup

	conn3, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "Connection after disconnect should succeed")

	conn2.Close()
	conn3.Close()
}

func TestConnectionLimitsIntegration_ConcurrentConnections(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newTestEnv(t, clockwork.NewRealClock(), withLimits(ws.NewConnectionLimits(20, 100, 100, 100)))

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()
	wsURL := wsBaseURL(ts)

	var wg sync.WaitGroup
	successCount := 0
	failCount := 0
	var mu sync.Mutex
	var conns []*websocket.Conn

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successCount++
				conns = append(conns, conn)
			} else {
				failCount++
				assert.True(t, resp != nil && resp.StatusCode == http.StatusServiceUnavailable, "Failed connection should return 503")
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 20, successCount, "Should have 20 successful connections")
	assert.Equal(t, 20, failCount, "Should have 20 failed connections")

	for _, c := range conns {
		c.Close()
	}
}
