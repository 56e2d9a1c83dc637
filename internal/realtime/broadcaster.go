package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
)

// Broadcaster serializes envelopes once and fans them out through connection
// sinks. A failed write drops the connection on the spot, so one dead peer
// never poisons a fan-out for the others.
type Broadcaster struct {
	registry *Registry
	clock    clockwork.Clock
}

func NewBroadcaster(registry *Registry, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{registry: registry, clock: clock}
}

// SendTo delivers one envelope to one connection. Returns false if the
// connection is unknown or the write failed; a failed write unregisters the
// connection before returning.
func (b *Broadcaster) SendTo(id string, env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal envelope", "event", env.Event, "error", err)
		return false
	}
	return b.send(id, data)
}

// BroadcastAll sends the envelope to every registered connection except the
// ids in exclude. Returns the number of successful deliveries.
func (b *Broadcaster) BroadcastAll(env Envelope, exclude map[string]struct{}) int {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal envelope", "event", env.Event, "error", err)
		return 0
	}

	delivered := 0
	for _, id := range b.registry.connIDs() {
		if _, skip := exclude[id]; skip {
			continue
		}
		if b.send(id, data) {
			delivered++
		}
	}
	return delivered
}

// BroadcastToRoom stamps the envelope with the room and current timestamp,
// then delivers it to the members present when the fan-out starts. Members
// joining mid-broadcast catch the next event. A room with no members is a
// cheap no-op.
func (b *Broadcaster) BroadcastToRoom(room Room, env Envelope) int {
	start := b.clock.Now()
	env.Room = string(room)
	env.Timestamp = start.UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal envelope", "event", env.Event, "room", string(room), "error", err)
		return 0
	}

	members := b.registry.MembersOf(room)
	if len(members) == 0 {
		return 0
	}

	delivered := 0
	for _, id := range members {
		if b.send(id, data) {
			delivered++
		}
	}

	metrics.RealtimeBroadcastDuration.Observe(b.clock.Since(start).Seconds())
	slog.Debug("Broadcast to room", "room", string(room), "event", env.Event, "delivered", delivered, "members", len(members))
	return delivered
}

// BroadcastDragEvent is the room broadcast used for ticket moves, tracked
// separately because drag and drop has the tightest latency budget in the UI.
func (b *Broadcaster) BroadcastDragEvent(room Room, event string, payload map[string]any) int {
	start := b.clock.Now()
	delivered := b.BroadcastToRoom(room, NewEnvelope(event, payload))
	elapsed := b.clock.Since(start)

	metrics.RealtimeDragEventDuration.Observe(elapsed.Seconds())
	slog.Debug("Drag event broadcast", "room", string(room), "event", event, "delivered", delivered, "duration_ms", elapsed.Milliseconds())
	return delivered
}

// send writes pre-serialized bytes to one connection. The sink enqueues
// without blocking, so the registry lock is never held across peer I/O.
func (b *Broadcaster) send(id string, data []byte) bool {
	sink, ok := b.registry.sinkFor(id)
	if !ok {
		return false
	}

	if err := sink.Write(data); err != nil {
		slog.Warn("Send failed, dropping connection", "conn_id", id, "error", err)
		metrics.RealtimeSendFailures.Inc()
		b.registry.UnregisterSink(id, sink)
		return false
	}

	b.registry.recordDelivery(id)
	metrics.RealtimeMessagesSent.Inc()
	return true
}
