package realtime

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsReporter_EmptyRegistry(t *testing.T) {
	registry := NewRegistry(clockwork.NewFakeClock())
	reporter := NewStatsReporter(registry)

	snap := reporter.Snapshot()

	assert.Equal(t, 0, snap.TotalConnections)
	assert.Equal(t, int64(0), snap.TotalMessagesSent)
	assert.Empty(t, snap.Rooms)
	assert.Empty(t, snap.Connections)
}

func TestStatsReporter_CountsConnectionsAndRooms(t *testing.T) {
	registry := NewRegistry(clockwork.NewFakeClock())
	reporter := NewStatsReporter(registry)

	a := registry.Register("a", &mockSink{}, "alice")
	b := registry.Register("b", &mockSink{}, "bob")
	registry.Subscribe(a, BoardRoom(1))
	registry.Subscribe(b, BoardRoom(1))
	registry.SubscribeAll(b)

	snap := reporter.Snapshot()

	assert.Equal(t, 2, snap.TotalConnections)
	assert.Equal(t, map[string]int{"1": 2, "all": 1}, snap.Rooms)
	require.Len(t, snap.Connections, 2)

	byID := make(map[string]ConnectionStats)
	for _, c := range snap.Connections {
		byID[c.ID] = c
	}
	assert.Equal(t, []string{"1"}, byID["a"].Rooms)
	assert.Equal(t, []string{"1", "all"}, byID["b"].Rooms)
	assert.Equal(t, "alice", byID["a"].DisplayName)
}

func TestStatsReporter_MessageCountAfterSend(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := NewRegistry(clock)
	broadcaster := NewBroadcaster(registry, clock)
	reporter := NewStatsReporter(registry)

	id := registry.Register("c1", &mockSink{}, "")
	require.True(t, broadcaster.SendTo(id, NewEnvelope("ping", nil)))

	snap := reporter.Snapshot()
	require.Len(t, snap.Connections, 1)
	assert.Equal(t, int64(1), snap.Connections[0].MessageCount)
	assert.Equal(t, int64(1), snap.TotalMessagesSent)
}

func TestStatsReporter_TotalMessagesSurvivesDisconnect(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := NewRegistry(clock)
	broadcaster := NewBroadcaster(registry, clock)
	reporter := NewStatsReporter(registry)

	first := registry.Register("", &mockSink{}, "")
	broadcaster.SendTo(first, NewEnvelope("ping", nil))
	broadcaster.SendTo(first, NewEnvelope("ping", nil))
	registry.Unregister(first)

	second := registry.Register("", &mockSink{}, "")
	broadcaster.SendTo(second, NewEnvelope("ping", nil))

	snap := reporter.Snapshot()
	assert.Equal(t, int64(3), snap.TotalMessagesSent, "total is cumulative across disconnects")
	assert.Equal(t, 1, snap.TotalConnections)
}

func TestStatsReporter_ConnectedDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := NewRegistry(clock)
	reporter := NewStatsReporter(registry)

	registry.Register("old", &mockSink{}, "")
	clock.Advance(90 * time.Second)
	registry.Register("young", &mockSink{}, "")

	snap := reporter.Snapshot()
	require.Len(t, snap.Connections, 2)
	assert.Equal(t, "old", snap.Connections[0].ID, "oldest connection sorts first")
	assert.Equal(t, float64(90), snap.Connections[0].ConnectedSeconds)
	assert.Equal(t, float64(0), snap.Connections[1].ConnectedSeconds)
}
