package socketio

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
	maxPayload          = 1 << 20
	writeTimeout        = 10 * time.Second
)

// Config tunes the engine.io keepalive cycle. Zero values take the protocol
// defaults; tests shrink them to keep runtimes short.
type Config struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	return c
}

// Bridge serves the Socket.IO endpoint and plugs each session into the
// realtime registry. It consumes only the registry and monitor contracts, so
// bridge sessions and native WebSocket connections share rooms, heartbeats
// and fan-out without knowing about each other.
type Bridge struct {
	registry *realtime.Registry
	monitor  *realtime.Monitor
	clock    clockwork.Clock
	upgrader gws.Upgrader
	cfg      Config
}

func NewBridge(registry *realtime.Registry, monitor *realtime.Monitor, clock clockwork.Clock, checkOrigin func(*http.Request) bool, cfg Config) *Bridge {
	return &Bridge{
		registry: registry,
		monitor:  monitor,
		clock:    clock,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		cfg: cfg.withDefaults(),
	}
}

// Handle upgrades an engine.io websocket request and runs the session until
// the peer goes away. Polling transports are not served.
func (b *Bridge) Handle(w http.ResponseWriter, r *http.Request) {
	if transport := r.URL.Query().Get("transport"); transport != "" && transport != "websocket" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":3,"message":"Transport unknown"}`))
		return
	}

	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Socket.IO upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	ws.SetReadLimit(maxPayload)

	sess := newSession(ws, b.clock)

	open, err := encodeOpenPacket(sess.sid, b.cfg.PingInterval, b.cfg.PingTimeout, maxPayload)
	if err != nil {
		sess.close()
		return
	}
	if err := sess.writeText(open); err != nil {
		sess.close()
		return
	}

	metrics.SocketIOConnectionsCurrent.Inc()
	defer metrics.SocketIOConnectionsCurrent.Dec()

	go sess.pingLoop(b.cfg.PingInterval, b.cfg.PingTimeout)

	clientHint := r.URL.Query().Get("client_id")
	displayName := r.URL.Query().Get("username")

	sess.readLoop(func(msg string) {
		b.handleMessage(sess, clientHint, displayName, msg)
	})

	if sess.connID != "" {
		b.registry.UnregisterSink(sess.connID, sess.sink)
	}
	sess.close()
	slog.Debug("Socket.IO session ended", "sid", sess.sid, "conn_id", sess.connID)
}

func (b *Bridge) handleMessage(sess *session, clientHint, displayName, msg string) {
	if msg == "" {
		metrics.SocketIOProtocolErrors.Inc()
		return
	}
	metrics.SocketIOPacketsTotal.WithLabelValues("in", packetTypeName(msg[0])).Inc()

	switch engineType(msg[0]) {
	case enginePong:
		sess.markPong()
		if sess.connID != "" {
			b.registry.Touch(sess.connID)
		}
	case engineMessage:
		b.handleSocket(sess, clientHint, displayName, msg[1:])
	case engineClose:
		sess.close()
	default:
		metrics.SocketIOProtocolErrors.Inc()
	}
}

func (b *Bridge) handleSocket(sess *session, clientHint, displayName, payload string) {
	if payload == "" {
		metrics.SocketIOProtocolErrors.Inc()
		return
	}

	switch socketType(payload[0]) {
	case socketConnect:
		b.handleConnect(sess, clientHint, displayName, payload)
	case socketEvent:
		b.handleEvent(sess, payload)
	case socketAck:
		// The bridge never emits events that request an ack.
	default:
		metrics.SocketIOProtocolErrors.Inc()
	}
}

func (b *Bridge) handleConnect(sess *session, clientHint, displayName, payload string) {
	if sess.connected.Load() {
		return
	}
	ns, _ := splitNamespace(payload[1:])

	hint := clientHint
	if hint == "" {
		hint = "sio-" + sess.sid
	}
	sess.sink = &sessionSink{sess: sess}
	sess.connID = b.registry.Register(hint, sess.sink, displayName)
	sess.connected.Store(true)

	ack, err := encodeConnectAck(ns, sess.sid)
	if err != nil {
		return
	}
	_ = sess.writeMessage(ack)
	slog.Debug("Socket.IO client connected", "conn_id", sess.connID, "sid", sess.sid)
}

func (b *Bridge) handleEvent(sess *session, payload string) {
	if !sess.connected.Load() {
		return
	}

	pkt, err := parseEventPacket(payload)
	if err != nil {
		metrics.SocketIOProtocolErrors.Inc()
		slog.Debug("Dropping malformed Socket.IO event", "conn_id", sess.connID, "error", err)
		return
	}

	switch pkt.Event {
	case "join":
		b.handleRoomChange(sess, pkt, true)

	case "leave":
		b.handleRoomChange(sess, pkt, false)

	case "ping":
		if pkt.AckID != nil {
			if ack, err := encodeAckPacket(pkt.Namespace, *pkt.AckID); err == nil {
				_ = sess.writeMessage(ack)
			}
		}

	case "heartbeat_ack":
		var body struct {
			HeartbeatID string `json:"heartbeat_id"`
		}
		if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil || body.HeartbeatID == "" {
			metrics.SocketIOProtocolErrors.Inc()
			return
		}
		b.monitor.HandleHeartbeatResponse(sess.connID, body.HeartbeatID)

	default:
		_ = sess.writeEventError(pkt.Namespace, "unknown event: "+pkt.Event)
	}
}

func (b *Bridge) handleRoomChange(sess *session, pkt eventPacket, join bool) {
	var body struct {
		Room    string `json:"room"`
		BoardID *int64 `json:"board_id"`
	}
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
		_ = sess.writeEventError(pkt.Namespace, "malformed room payload")
		return
	}

	var room realtime.Room
	switch {
	case body.BoardID != nil:
		room = realtime.BoardRoom(*body.BoardID)
	case body.Room != "":
		var err error
		room, err = parseRoomName(body.Room)
		if err != nil {
			_ = sess.writeEventError(pkt.Namespace, err.Error())
			return
		}
	default:
		_ = sess.writeEventError(pkt.Namespace, "room change requires a room or board_id")
		return
	}

	if join {
		b.registry.Subscribe(sess.connID, room)
	} else {
		b.registry.Unsubscribe(sess.connID, room)
	}

	if pkt.AckID != nil {
		if ack, err := encodeAckPacket(pkt.Namespace, *pkt.AckID, map[string]any{"room": roomName(room)}); err == nil {
			_ = sess.writeMessage(ack)
		}
	}
	slog.Debug("Socket.IO room change", "conn_id", sess.connID, "room", string(room), "joined", join)
}

// session is one engine.io connection. The read loop, the ping loop and
// broadcaster fan-outs all write through writeText, which serializes access
// to the underlying websocket.
type session struct {
	ws    *gws.Conn
	clock clockwork.Clock
	sid   string

	// connID and sink are set once by the connect handler on the read
	// goroutine, which is also where teardown runs.
	connID    string
	sink      realtime.Sink
	connected atomic.Bool

	sendMu sync.Mutex

	pingMu       sync.Mutex
	awaitingPong bool
	pingSentAt   time.Time
	nextPingAt   time.Time

	closed atomic.Bool
}

func newSession(ws *gws.Conn, clock clockwork.Clock) *session {
	return &session{ws: ws, clock: clock, sid: uuid.NewString()}
}

func (s *session) close() {
	if s.closed.Swap(true) {
		return
	}
	_ = s.ws.Close()
}

func (s *session) writeText(msg string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.ws.SetWriteDeadline(s.clock.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := s.ws.WriteMessage(gws.TextMessage, []byte(msg)); err != nil {
		return err
	}
	if msg != "" {
		metrics.SocketIOPacketsTotal.WithLabelValues("out", packetTypeName(msg[0])).Inc()
	}
	return nil
}

func (s *session) writeMessage(payload string) error {
	return s.writeText(string(engineMessage) + payload)
}

func (s *session) writeEventError(namespace, msg string) error {
	packet, err := encodeEventPacket(namespace, nil, "error", map[string]any{"message": msg})
	if err != nil {
		return err
	}
	return s.writeMessage(packet)
}

func (s *session) readLoop(onMessage func(string)) {
	defer s.close()
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(string(data))
	}
}

// pingLoop drives the server-side engine.io keepalive: a ping every
// PingInterval, a dead session when no pong lands within PingTimeout.
func (s *session) pingLoop(interval, timeout time.Duration) {
	s.pingMu.Lock()
	s.nextPingAt = s.clock.Now().Add(interval)
	s.pingMu.Unlock()

	ticker := s.clock.NewTicker(interval / 4)
	defer ticker.Stop()

	for range ticker.Chan() {
		if s.closed.Load() {
			return
		}

		now := s.clock.Now()
		s.pingMu.Lock()
		// connID is owned by the read goroutine, so this log carries the sid only.
		if s.awaitingPong && now.Sub(s.pingSentAt) > timeout {
			s.pingMu.Unlock()
			slog.Debug("Socket.IO ping timeout", "sid", s.sid)
			s.close()
			return
		}
		if !s.awaitingPong && !now.Before(s.nextPingAt) {
			s.awaitingPong = true
			s.pingSentAt = now
			s.nextPingAt = now.Add(interval)
			s.pingMu.Unlock()
			_ = s.writeText(string(enginePing))
			continue
		}
		s.pingMu.Unlock()
	}
}

func (s *session) markPong() {
	s.pingMu.Lock()
	s.awaitingPong = false
	s.pingMu.Unlock()
}

// sessionSink adapts a session to the realtime Sink contract. Envelope bytes
// are decoded and re-encoded as a Socket.IO event named after the envelope's
// event, with the room name and timestamp folded into the payload.
type sessionSink struct {
	sess *session
}

func (k *sessionSink) Write(data []byte) error {
	var env realtime.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	payload := env.Data
	if payload == nil {
		payload = map[string]any{}
	}
	if env.Timestamp != "" {
		payload["timestamp"] = env.Timestamp
	}
	if env.Room != "" {
		payload["room"] = roomName(realtime.Room(env.Room))
	}

	packet, err := encodeEventPacket("/", nil, env.Event, payload)
	if err != nil {
		return err
	}
	return k.sess.writeMessage(packet)
}

func (k *sessionSink) Close() error {
	k.sess.close()
	return nil
}
