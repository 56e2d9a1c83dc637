package realtime

import (
	"sort"
	"time"
)

// ConnectionStats is the per-connection slice of a stats snapshot.
type ConnectionStats struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"display_name,omitempty"`
	ConnectedSeconds float64   `json:"connected_seconds"`
	LastActivity     time.Time `json:"last_activity"`
	MessageCount     int64     `json:"message_count"`
	Rooms            []string  `json:"rooms"`
}

// Stats is a point-in-time view of the registry for the operator endpoint.
type Stats struct {
	TotalConnections  int               `json:"total_connections"`
	TotalMessagesSent int64             `json:"total_messages_sent"`
	Rooms             map[string]int    `json:"rooms"`
	Connections       []ConnectionStats `json:"connections"`
}

// StatsReporter produces registry snapshots. It only reads: taking a
// snapshot never blocks sends or disconnects for longer than a map copy.
type StatsReporter struct {
	registry *Registry
}

func NewStatsReporter(registry *Registry) *StatsReporter {
	return &StatsReporter{registry: registry}
}

// Snapshot copies the current registry state. Connections are ordered oldest
// first so repeated calls render stably.
func (s *StatsReporter) Snapshot() Stats {
	r := s.registry
	now := r.clock.Now()

	r.mu.RLock()
	stats := Stats{
		TotalConnections:  len(r.conns),
		TotalMessagesSent: r.totalSent,
		Rooms:             make(map[string]int, len(r.rooms)),
		Connections:       make([]ConnectionStats, 0, len(r.conns)),
	}
	for room, members := range r.rooms {
		stats.Rooms[string(room)] = len(members)
	}
	for id, conn := range r.conns {
		rooms := make([]string, 0, len(r.memberOf[id]))
		for room := range r.memberOf[id] {
			rooms = append(rooms, string(room))
		}
		sort.Strings(rooms)
		stats.Connections = append(stats.Connections, ConnectionStats{
			ID:               conn.id,
			DisplayName:      conn.displayName,
			ConnectedSeconds: now.Sub(conn.connectedAt).Seconds(),
			LastActivity:     conn.lastActivity,
			MessageCount:     conn.messageCount,
			Rooms:            rooms,
		})
	}
	r.mu.RUnlock()

	sort.Slice(stats.Connections, func(i, j int) bool {
		a, b := stats.Connections[i], stats.Connections[j]
		if a.ConnectedSeconds != b.ConnectedSeconds {
			return a.ConnectedSeconds > b.ConnectedSeconds
		}
		return a.ID < b.ID
	})
	return stats
}
