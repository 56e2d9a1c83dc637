package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
)

const (
	defaultProbeInterval    = 30 * time.Second
	defaultHeartbeatTimeout = 60 * time.Second
	defaultIdleTimeout      = 5 * time.Minute
)

// MonitorConfig controls the liveness loop. Zero values fall back to the
// package defaults.
type MonitorConfig struct {
	// ProbeInterval is the sweep cadence.
	ProbeInterval time.Duration
	// HeartbeatTimeout is how long a probe may stay unanswered before the
	// connection is dropped.
	HeartbeatTimeout time.Duration
	// IdleTimeout is how long a connection may stay without any traffic
	// before the reaper removes it. Probes go out at half this threshold.
	IdleTimeout time.Duration
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	return c
}

// Monitor owns connection liveness: it probes quiet connections with
// heartbeat tickets, drops the ones that never answer, and reaps the ones
// with no traffic at all. One Monitor serves one Registry.
type Monitor struct {
	registry    *Registry
	broadcaster *Broadcaster
	clock       clockwork.Clock
	cfg         MonitorConfig
}

func NewMonitor(registry *Registry, broadcaster *Broadcaster, clock clockwork.Clock, cfg MonitorConfig) *Monitor {
	return &Monitor{
		registry:    registry,
		broadcaster: broadcaster,
		clock:       clock,
		cfg:         cfg.withDefaults(),
	}
}

// Run executes the liveness loop until ctx is cancelled. The caller owns the
// goroutine; nothing here starts one behind the scenes.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	slog.Info("Liveness monitor started",
		"probe_interval", m.cfg.ProbeInterval,
		"heartbeat_timeout", m.cfg.HeartbeatTimeout,
		"idle_timeout", m.cfg.IdleTimeout,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Liveness monitor stopped")
			return
		case <-ticker.Chan():
			m.sweep()
		}
	}
}

// sweep runs one liveness pass: expired heartbeats first, then the idle
// reaper, then fresh probes for connections that have gone quiet.
func (m *Monitor) sweep() {
	now := m.clock.Now()

	for _, ref := range m.registry.expiredHeartbeats(now, m.cfg.HeartbeatTimeout) {
		if !m.registry.UnregisterSink(ref.id, ref.sink) {
			continue
		}
		slog.Info("Heartbeat unanswered, dropped connection", "conn_id", ref.id, "timeout", m.cfg.HeartbeatTimeout)
		metrics.HeartbeatTimeouts.Inc()
	}

	m.CleanupInactive(m.cfg.IdleTimeout)

	for _, id := range m.registry.probeCandidates(now, m.cfg.IdleTimeout/2) {
		m.IssueHeartbeat(id)
	}
}

// CleanupInactive removes every connection idle for at least timeout and
// returns how many were removed. A zero timeout removes all connections.
// Exposed for the operator endpoint as well as the background loop.
func (m *Monitor) CleanupInactive(timeout time.Duration) int {
	now := m.clock.Now()
	reaped := 0
	for _, ref := range m.registry.idleConnections(now, timeout) {
		if !m.registry.UnregisterSink(ref.id, ref.sink) {
			continue
		}
		slog.Info("Reaping inactive connection", "conn_id", ref.id, "idle_timeout", timeout)
		reaped++
	}
	if reaped > 0 {
		metrics.ConnectionsReaped.Add(float64(reaped))
	}
	return reaped
}

// IssueHeartbeat sends a heartbeat probe with a fresh ticket id to one
// connection. The ticket stays pending until the client acks it or the
// timeout sweep drops the connection. Returns the ticket id, or false if the
// connection is gone or the send failed.
func (m *Monitor) IssueHeartbeat(id string) (string, bool) {
	beatID := uuid.NewString()
	if !m.registry.addPendingBeat(id, beatID, m.clock.Now()) {
		return "", false
	}

	env := NewEnvelope(EventHeartbeat, map[string]any{"heartbeat_id": beatID})
	if !m.broadcaster.SendTo(id, env) {
		// Send failure already unregistered the connection.
		return "", false
	}

	metrics.HeartbeatsIssued.Inc()
	slog.Debug("Heartbeat issued", "conn_id", id, "heartbeat_id", beatID)
	return beatID, true
}

// HandleHeartbeatResponse resolves a pending ticket and counts as activity.
// Unknown connections or ticket ids are ignored: duplicate acks and acks
// racing a disconnect are routine, not errors.
func (m *Monitor) HandleHeartbeatResponse(id, beatID string) {
	if !m.registry.resolveBeat(id, beatID) {
		slog.Debug("Stale heartbeat ack ignored", "conn_id", id, "heartbeat_id", beatID)
		return
	}
	m.registry.Touch(id)
	slog.Debug("Heartbeat acknowledged", "conn_id", id, "heartbeat_id", beatID)
}
