package realtime

import (
	"log/slog"
	"strconv"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
)

// Room names a broadcast scope: one board, or the sentinel all-events room
// used by clients that want every board.
type Room string

// RoomAll receives events for every board.
const RoomAll Room = "all"

// BoardRoom returns the room for a single board.
func BoardRoom(boardID int64) Room {
	return Room(strconv.FormatInt(boardID, 10))
}

// Subscribe adds the connection to a room. Unknown connection ids are
// ignored, so a subscribe racing a disconnect cannot create a ghost entry.
// Subscribing twice is a no-op.
func (r *Registry) Subscribe(id string, room Room) {
	r.mu.Lock()
	if _, ok := r.conns[id]; !ok {
		r.mu.Unlock()
		slog.Debug("Subscribe for unknown connection ignored", "conn_id", id, "room", string(room))
		return
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
	memberships, ok := r.memberOf[id]
	if !ok {
		memberships = make(map[Room]struct{})
		r.memberOf[id] = memberships
	}
	memberships[room] = struct{}{}
	roomCount := len(r.rooms)
	r.mu.Unlock()

	metrics.RealtimeRoomsCurrent.Set(float64(roomCount))
	slog.Debug("Subscribed", "conn_id", id, "room", string(room))
}

// Unsubscribe removes the connection from a room. Empty rooms are deleted so
// the room table only holds rooms with members.
func (r *Registry) Unsubscribe(id string, room Room) {
	r.mu.Lock()
	if members, ok := r.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if memberships, ok := r.memberOf[id]; ok {
		delete(memberships, room)
		if len(memberships) == 0 {
			delete(r.memberOf, id)
		}
	}
	roomCount := len(r.rooms)
	r.mu.Unlock()

	metrics.RealtimeRoomsCurrent.Set(float64(roomCount))
	slog.Debug("Unsubscribed", "conn_id", id, "room", string(room))
}

// SubscribeAll puts the connection in the all-events room.
func (r *Registry) SubscribeAll(id string) {
	r.Subscribe(id, RoomAll)
}

// MembersOf returns a snapshot of the connection ids in a room. The slice is
// the caller's to keep; later membership changes do not affect it.
func (r *Registry) MembersOf(room Room) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// RoomsOf returns a snapshot of the rooms a connection belongs to.
func (r *Registry) RoomsOf(id string) []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	memberships := r.memberOf[id]
	rooms := make([]Room, 0, len(memberships))
	for room := range memberships {
		rooms = append(rooms, room)
	}
	return rooms
}

// PurgeConnection drops every room membership of a connection. Unregister
// does this itself; the exported form exists for transports that manage
// subscriptions separately from connection lifetime.
func (r *Registry) PurgeConnection(id string) {
	r.mu.Lock()
	r.purgeLocked(id)
	roomCount := len(r.rooms)
	r.mu.Unlock()

	metrics.RealtimeRoomsCurrent.Set(float64(roomCount))
}

// purgeLocked removes id from both sides of the room index. Caller holds mu.
func (r *Registry) purgeLocked(id string) {
	for room := range r.memberOf[id] {
		members := r.rooms[room]
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.memberOf, id)
}
