package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
)

// Sink is the write half of one transport connection. Write hands off a
// serialized envelope and must not block on peer I/O; implementations enqueue
// and fail fast when the peer cannot keep up. Close is idempotent.
type Sink interface {
	Write(data []byte) error
	Close() error
}

// connection is the registry's record of one live peer. Fields are guarded by
// the registry mutex, never by the connection itself.
type connection struct {
	id           string
	sink         Sink
	displayName  string
	connectedAt  time.Time
	lastActivity time.Time
	messageCount int64

	// pendingBeats maps heartbeat ticket id to issue time. An entry older
	// than the heartbeat timeout marks the connection dead.
	pendingBeats map[string]time.Time
}

// ConnectionInfo is the read-only copy of a connection record handed out by
// Get and the stats reporter.
type ConnectionInfo struct {
	ID           string
	DisplayName  string
	ConnectedAt  time.Time
	LastActivity time.Time
	MessageCount int64
}

// Registry tracks every live connection and its room memberships. One mutex
// guards both tables, so a connection can never linger in a room index after
// removal or appear in a room before it is registered.
type Registry struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	conns     map[string]*connection
	rooms     map[Room]map[string]struct{}
	memberOf  map[string]map[Room]struct{}
	totalSent int64
}

func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:    clock,
		conns:    make(map[string]*connection),
		rooms:    make(map[Room]map[string]struct{}),
		memberOf: make(map[string]map[Room]struct{}),
	}
}

// Register adds a connection and returns its id. An empty hint gets a
// generated id. If the id is already taken the previous connection is torn
// down and replaced, so a client reconnecting with its old id does not end up
// with two records.
func (r *Registry) Register(hint string, sink Sink, displayName string) string {
	id := hint
	if id == "" {
		id = "conn-" + uuid.NewString()
	}
	now := r.clock.Now()

	r.mu.Lock()
	prev, replaced := r.conns[id]
	if replaced {
		r.purgeLocked(id)
		delete(r.conns, id)
	}
	r.conns[id] = &connection{
		id:           id,
		sink:         sink,
		displayName:  displayName,
		connectedAt:  now,
		lastActivity: now,
		pendingBeats: make(map[string]time.Time),
	}
	total := len(r.conns)
	roomCount := len(r.rooms)
	r.mu.Unlock()

	if replaced {
		_ = prev.sink.Close()
		slog.Warn("Connection id reused, replacing previous connection", "conn_id", id)
		metrics.RealtimeConnectionsTotal.WithLabelValues("replaced").Inc()
	} else {
		metrics.RealtimeConnectionsTotal.WithLabelValues("accepted").Inc()
	}
	metrics.RealtimeConnectionsCurrent.Set(float64(total))
	metrics.RealtimeRoomsCurrent.Set(float64(roomCount))

	slog.Info("Client connected", "conn_id", id, "display_name", displayName, "total_connections", total)
	return id
}

// Unregister removes a connection, purges its room memberships, and closes
// its sink. Unknown ids are a no-op, so disconnect races are harmless.
func (r *Registry) Unregister(id string) {
	r.remove(id, nil)
}

// UnregisterSink removes the connection only while id is still bound to sink.
// Every teardown path that captured a sink before doing I/O uses this form:
// a reconnect may have replaced the entry in the meantime, and the stale
// handler must not tear down the replacement. Reports whether an entry was
// removed.
func (r *Registry) UnregisterSink(id string, sink Sink) bool {
	return r.remove(id, sink)
}

// remove deletes the entry for id. A non-nil sink must match the stored one,
// otherwise the entry belongs to a newer registration and stays.
func (r *Registry) remove(id string, sink Sink) bool {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if !ok || (sink != nil && conn.sink != sink) {
		r.mu.Unlock()
		return false
	}
	r.purgeLocked(id)
	delete(r.conns, id)
	total := len(r.conns)
	roomCount := len(r.rooms)
	r.mu.Unlock()

	// Sink close happens outside the lock: it may touch the network.
	_ = conn.sink.Close()

	metrics.RealtimeConnectionsCurrent.Set(float64(total))
	metrics.RealtimeRoomsCurrent.Set(float64(roomCount))
	slog.Info("Client disconnected", "conn_id", id, "total_connections", total)
	return true
}

// CloseAll unregisters every connection, closing each sink, and returns how
// many were closed. The HTTP server's shutdown leaves hijacked websocket
// connections untouched, so the server drains the registry through this once
// the listener has stopped.
func (r *Registry) CloseAll() int {
	closed := 0
	for _, ref := range r.connRefs() {
		if r.remove(ref.id, ref.sink) {
			closed++
		}
	}
	return closed
}

// Touch refreshes the connection's last activity timestamp. Called on every
// inbound message and resolved heartbeat.
func (r *Registry) Touch(id string) {
	now := r.clock.Now()
	r.mu.Lock()
	if conn, ok := r.conns[id]; ok {
		conn.lastActivity = now
	}
	r.mu.Unlock()
}

// Get returns a copy of the connection record.
func (r *Registry) Get(id string) (ConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return ConnectionInfo{}, false
	}
	return conn.info(), true
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (c *connection) info() ConnectionInfo {
	return ConnectionInfo{
		ID:           c.id,
		DisplayName:  c.displayName,
		ConnectedAt:  c.connectedAt,
		LastActivity: c.lastActivity,
		MessageCount: c.messageCount,
	}
}

// connIDs returns a snapshot of all connection ids.
func (r *Registry) connIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// connRef pairs a connection id with the sink registered under it, so that
// removal after the lock is released can verify the entry was not replaced
// in between.
type connRef struct {
	id   string
	sink Sink
}

// connRefs returns a snapshot of every connection with its current sink.
func (r *Registry) connRefs() []connRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]connRef, 0, len(r.conns))
	for id, conn := range r.conns {
		refs = append(refs, connRef{id: id, sink: conn.sink})
	}
	return refs
}

// sinkFor returns the sink for a connection, or false if it is gone.
func (r *Registry) sinkFor(id string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return conn.sink, true
}

// recordDelivery bumps the per-connection and total counters after a
// successful write and counts as activity.
func (r *Registry) recordDelivery(id string) {
	now := r.clock.Now()
	r.mu.Lock()
	if conn, ok := r.conns[id]; ok {
		conn.lastActivity = now
		conn.messageCount++
		r.totalSent++
	}
	r.mu.Unlock()
}

// idleConnections returns connections whose last activity is at least cutoff
// ago. A zero cutoff therefore matches every connection.
func (r *Registry) idleConnections(now time.Time, cutoff time.Duration) []connRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var refs []connRef
	for id, conn := range r.conns {
		if now.Sub(conn.lastActivity) >= cutoff {
			refs = append(refs, connRef{id: id, sink: conn.sink})
		}
	}
	return refs
}

// probeCandidates returns ids idle for at least cutoff with no heartbeat
// already in flight.
func (r *Registry) probeCandidates(now time.Time, cutoff time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, conn := range r.conns {
		if len(conn.pendingBeats) == 0 && now.Sub(conn.lastActivity) >= cutoff {
			ids = append(ids, id)
		}
	}
	return ids
}

// addPendingBeat records an issued heartbeat ticket. Returns false if the
// connection is gone.
func (r *Registry) addPendingBeat(id, beatID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	conn.pendingBeats[beatID] = now
	return true
}

// resolveBeat clears a pending heartbeat ticket. Returns false for unknown
// connections or ticket ids, which callers ignore: duplicate and post-reap
// acks are expected.
func (r *Registry) resolveBeat(id, beatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	if _, ok := conn.pendingBeats[beatID]; !ok {
		return false
	}
	delete(conn.pendingBeats, beatID)
	return true
}

// expiredHeartbeats returns connections holding at least one ticket issued
// more than timeout ago.
func (r *Registry) expiredHeartbeats(now time.Time, timeout time.Duration) []connRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var refs []connRef
	for id, conn := range r.conns {
		for _, issued := range conn.pendingBeats {
			if now.Sub(issued) >= timeout {
				refs = append(refs, connRef{id: id, sink: conn.sink})
				break
			}
		}
	}
	return refs
}
