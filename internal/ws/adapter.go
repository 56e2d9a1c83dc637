package ws

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
)

// Adapter bridges WebSocket connections onto the realtime core. It owns the
// upgrade, the per-connection writer, and the inbound frame dispatch; all
// state lives in the registry.
type Adapter struct {
	registry    *realtime.Registry
	broadcaster *realtime.Broadcaster
	monitor     *realtime.Monitor
	clock       clockwork.Clock
	upgrader    websocket.Upgrader
}

func NewAdapter(registry *realtime.Registry, broadcaster *realtime.Broadcaster, monitor *realtime.Monitor, clock clockwork.Clock, checkOrigin func(r *http.Request) bool) *Adapter {
	return &Adapter{
		registry:    registry,
		broadcaster: broadcaster,
		monitor:     monitor,
		clock:       clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle upgrades the request and serves the connection until the peer goes
// away. Query parameters: client_id reuses a stable id across reconnects,
// username labels the connection, board subscribes to one board up front.
// Without a board parameter the connection gets every event (subscribe_all),
// which keeps old clients working.
func (a *Adapter) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	query := r.URL.Query()
	writer := newConnWriter(conn, a.clock)
	id := a.registry.Register(query.Get("client_id"), writer, query.Get("username"))
	connectedAt := a.clock.Now()

	if board := query.Get("board"); board == "" {
		a.registry.SubscribeAll(id)
	} else if boardID, err := strconv.ParseInt(board, 10, 64); err == nil {
		a.registry.Subscribe(id, realtime.BoardRoom(boardID))
	} else {
		a.broadcaster.SendTo(id, realtime.ErrorEnvelope("invalid board parameter: "+board))
	}

	a.broadcaster.SendTo(id, realtime.NewEnvelope(realtime.EventConnected, map[string]any{"client_id": id}))

	a.readLoop(id, conn)

	// A reconnect under the same client_id may have replaced the registry
	// entry; the guarded unregister leaves the replacement untouched.
	a.registry.UnregisterSink(id, writer)
	metrics.WebSocketConnectionDuration.Observe(a.clock.Since(connectedAt).Seconds())
}

// readLoop blocks until the connection closes. Every inbound message counts
// as activity, parseable or not.
func (a *Adapter) readLoop(id string, conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(a.clock.Now().Add(pongDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(a.clock.Now().Add(pongDeadline))
		a.registry.Touch(id)
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(a.clock.Now().Add(pongDeadline))
		a.registry.Touch(id)
		a.dispatch(id, data)
	}
}

// dispatch routes one control frame. Failures are answered on the sending
// connection only; a bad frame never disturbs the other clients.
func (a *Adapter) dispatch(id string, data []byte) {
	frame, err := realtime.ParseFrame(data)
	if err != nil {
		slog.Debug("Malformed frame", "conn_id", id, "error", err)
		a.broadcaster.SendTo(id, realtime.ErrorEnvelope("malformed frame"))
		return
	}

	switch frame.Type {
	case realtime.FrameSubscribe:
		if frame.BoardID == nil {
			a.broadcaster.SendTo(id, realtime.ErrorEnvelope("subscribe requires board_id"))
			return
		}
		a.registry.Subscribe(id, realtime.BoardRoom(*frame.BoardID))
	case realtime.FrameUnsubscribe:
		if frame.BoardID == nil {
			a.broadcaster.SendTo(id, realtime.ErrorEnvelope("unsubscribe requires board_id"))
			return
		}
		a.registry.Unsubscribe(id, realtime.BoardRoom(*frame.BoardID))
	case realtime.FrameSubscribeAll:
		a.registry.SubscribeAll(id)
	case realtime.FrameHeartbeatAck:
		a.monitor.HandleHeartbeatResponse(id, frame.HeartbeatID)
	case realtime.FramePing:
		a.broadcaster.SendTo(id, realtime.NewEnvelope(realtime.EventPong, nil))
	default:
		slog.Debug("Unknown frame type", "conn_id", id, "type", frame.Type)
		a.broadcaster.SendTo(id, realtime.ErrorEnvelope("unknown frame type: "+frame.Type))
	}
}
