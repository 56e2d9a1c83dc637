package socketio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
)

const boardRoomPrefix = "board_"

// parseRoomName maps the bridge's room naming onto core rooms. Clients use
// "board_{id}" for a single board and "all" for the firehose.
func parseRoomName(name string) (realtime.Room, error) {
	if name == string(realtime.RoomAll) {
		return realtime.RoomAll, nil
	}
	if raw, ok := strings.CutPrefix(name, boardRoomPrefix); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid board room %q", name)
		}
		return realtime.BoardRoom(id), nil
	}
	return "", fmt.Errorf("unknown room %q", name)
}

// roomName is the inverse mapping, used when stamping outbound events.
func roomName(room realtime.Room) string {
	if room == realtime.RoomAll {
		return string(realtime.RoomAll)
	}
	return boardRoomPrefix + string(room)
}
