package ws

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConnPair upgrades a loopback WebSocket and returns both ends.
func newTestConnPair(t *testing.T) (server *gws.Conn, client *gws.Conn) {
	t.Helper()
	upgrader := gws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *gws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

func TestConnWriter_DeliversInOrder(t *testing.T) {
	serverConn, clientConn := newTestConnPair(t)
	writer := newConnWriter(serverConn, clockwork.NewRealClock())
	t.Cleanup(func() { writer.Close() })

	const n = 10
	for i := range n {
		require.NoError(t, writer.Write(fmt.Appendf(nil, "msg-%d", i)))
	}

	for i := range n {
		_ = clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := clientConn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), string(msg), "messages must arrive in write order")
	}
}

func TestConnWriter_WriteAfterCloseFails(t *testing.T) {
	serverConn, _ := newTestConnPair(t)
	writer := newConnWriter(serverConn, clockwork.NewRealClock())

	require.NoError(t, writer.Close())

	err := writer.Write([]byte("late"))
	assert.ErrorIs(t, err, errWriterClosed)
}

func TestConnWriter_CloseIsIdempotent(t *testing.T) {
	serverConn, _ := newTestConnPair(t)
	writer := newConnWriter(serverConn, clockwork.NewRealClock())

	assert.NoError(t, writer.Close())
	assert.NoError(t, writer.Close())
}

func TestConnWriter_FullBufferFailsFast(t *testing.T) {
	// No run goroutine: nothing drains the queue, so the third write must
	// fail instead of blocking.
	writer := &connWriter{
		sendChannel: make(chan []byte, 2),
		doneChannel: make(chan struct{}),
	}

	require.NoError(t, writer.Write([]byte("one")))
	require.NoError(t, writer.Write([]byte("two")))

	done := make(chan error, 1)
	go func() { done <- writer.Write([]byte("three")) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errBufferFull)
	case <-time.After(time.Second):
		t.Fatal("Write blocked on a full buffer")
	}
}
