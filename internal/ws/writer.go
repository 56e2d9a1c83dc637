package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	maxFrameSize      = 4096
	messageBufferSize = 16
)

var (
	errWriterClosed = errors.New("writer closed")
	errBufferFull   = errors.New("send buffer full")
)

// connWriter drains a bounded queue onto one WebSocket connection and sends
// protocol pings. It is the realtime.Sink for connections accepted by this
// adapter: Write never blocks, and a full buffer reads as a dead peer.
type connWriter struct {
	conn        *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	evicted     atomic.Bool
}

func newConnWriter(conn *websocket.Conn, clock clockwork.Clock) *connWriter {
	cw := &connWriter{
		conn:        conn,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	go cw.run()
	return cw
}

// Write enqueues one message for delivery. Returns errBufferFull when the
// peer cannot keep up; the caller treats that as a transport failure and
// tears the connection down.
func (cw *connWriter) Write(data []byte) error {
	select {
	case <-cw.doneChannel:
		return errWriterClosed
	default:
	}

	select {
	case cw.sendChannel <- data:
		return nil
	default:
		if cw.evicted.CompareAndSwap(false, true) {
			metrics.WebSocketSlowClientsEvicted.Inc()
		}
		return errBufferFull
	}
}

// Close stops the writer goroutine and closes the underlying connection.
// Safe to call more than once and from any goroutine.
func (cw *connWriter) Close() error {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.conn.Close()
	})
	return nil
}

func (cw *connWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-cw.sendChannel:
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = cw.Close()
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				_ = cw.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *connWriter) updateWriteDeadline() {
	_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}
