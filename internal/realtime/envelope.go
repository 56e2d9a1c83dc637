package realtime

import "encoding/json"

// Envelope is the tagged wrapper for every message sent to clients. Event
// names the kind, Data carries the kind-specific payload. Room and Timestamp
// are stamped by the broadcaster on room fan-outs.
type Envelope struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
	Room      string         `json:"room,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// NewEnvelope builds an envelope without room or timestamp.
func NewEnvelope(event string, data map[string]any) Envelope {
	return Envelope{Event: event, Data: data}
}

// ErrorEnvelope builds the reply sent to a single connection when its own
// frame could not be processed.
func ErrorEnvelope(message string) Envelope {
	return Envelope{Event: EventError, Data: map[string]any{"message": message}}
}

// Event names owned by the realtime layer itself. Domain event names
// (ticket_created etc.) live in internal/domain.
const (
	EventConnected = "connected"
	EventHeartbeat = "heartbeat"
	EventPong      = "pong"
	EventError     = "error"
)

// Frame is one inbound control message from a client. Kind-specific fields
// are pointers or zero values so a single struct covers every frame type.
type Frame struct {
	Type        string `json:"type"`
	BoardID     *int64 `json:"board_id,omitempty"`
	HeartbeatID string `json:"heartbeat_id,omitempty"`
}

// Inbound control frame kinds. Anything else is answered with an error
// envelope on the sending connection only.
const (
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"
	FrameSubscribeAll = "subscribe_all"
	FrameHeartbeatAck = "heartbeat_ack"
	FramePing         = "ping"
)

// ParseFrame decodes one inbound control frame.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
