package socketio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
)

func TestParseEventPacket(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    eventPacket
		wantErr bool
	}{
		{
			name:    "plain event",
			payload: `2["join",{"room":"board_7"}]`,
			want:    eventPacket{Namespace: "/", Event: "join"},
		},
		{
			name:    "event with ack id",
			payload: `25["ping"]`,
			want:    eventPacket{Namespace: "/", AckID: intPtr(5), Event: "ping"},
		},
		{
			name:    "event with namespace and ack id",
			payload: `2/admin,12["leave",{"room":"all"}]`,
			want:    eventPacket{Namespace: "/admin", AckID: intPtr(12), Event: "leave"},
		},
		{
			name:    "empty payload",
			payload: "",
			wantErr: true,
		},
		{
			name:    "wrong packet type",
			payload: `3["join"]`,
			wantErr: true,
		},
		{
			name:    "missing array",
			payload: `2{"room":"board_7"}`,
			wantErr: true,
		},
		{
			name:    "empty array",
			payload: `2[]`,
			wantErr: true,
		},
		{
			name:    "non-string event name",
			payload: `2[42,{"room":"board_7"}]`,
			wantErr: true,
		},
		{
			name:    "truncated json",
			payload: `2["join",{"room"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := parseEventPacket(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Namespace, pkt.Namespace)
			assert.Equal(t, tt.want.Event, pkt.Event)
			if tt.want.AckID == nil {
				assert.Nil(t, pkt.AckID)
			} else {
				require.NotNil(t, pkt.AckID)
				assert.Equal(t, *tt.want.AckID, *pkt.AckID)
			}
		})
	}
}

func TestEncodeEventPacketRoundTrip(t *testing.T) {
	packet, err := encodeEventPacket("/", nil, "ticket_moved", map[string]any{"ticket_id": 7})
	require.NoError(t, err)

	pkt, err := parseEventPacket(packet)
	require.NoError(t, err)
	assert.Equal(t, "ticket_moved", pkt.Event)
	require.Len(t, pkt.Args, 1)
	assert.JSONEq(t, `{"ticket_id":7}`, string(pkt.Args[0]))
}

func TestEncodeConnectAck(t *testing.T) {
	packet, err := encodeConnectAck("/", "sid-123")
	require.NoError(t, err)
	assert.Equal(t, `0{"sid":"sid-123"}`, packet)

	packet, err = encodeConnectAck("/admin", "sid-123")
	require.NoError(t, err)
	assert.Equal(t, `0/admin,{"sid":"sid-123"}`, packet)
}

func TestEncodeAckPacket(t *testing.T) {
	packet, err := encodeAckPacket("/", 3)
	require.NoError(t, err)
	assert.Equal(t, "33[]", packet)

	packet, err = encodeAckPacket("/", 3, map[string]any{"room": "board_7"})
	require.NoError(t, err)
	assert.Equal(t, `33[{"room":"board_7"}]`, packet)
}

func TestParseAckPacket(t *testing.T) {
	ack, err := parseAckPacket(`37[{"ok":true}]`)
	require.NoError(t, err)
	assert.Equal(t, 7, ack.ID)
	require.Len(t, ack.Args, 1)

	_, err = parseAckPacket(`3[{"ok":true}]`)
	assert.Error(t, err, "ack id is mandatory")
}

func TestEncodeOpenPacket(t *testing.T) {
	packet, err := encodeOpenPacket("sid-9", 25*time.Second, 20*time.Second, 4096)
	require.NoError(t, err)
	assert.Equal(t, `0{"sid":"sid-9","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":4096}`, packet)
}

func TestParseRoomName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    realtime.Room
		wantErr bool
	}{
		{name: "board room", input: "board_7", want: realtime.BoardRoom(7)},
		{name: "large id", input: "board_9000000000", want: realtime.BoardRoom(9000000000)},
		{name: "all room", input: "all", want: realtime.RoomAll},
		{name: "non-numeric suffix", input: "board_seven", wantErr: true},
		{name: "missing id", input: "board_", wantErr: true},
		{name: "unknown name", input: "kitchen", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := parseRoomName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, room)
		})
	}
}

func TestRoomName(t *testing.T) {
	assert.Equal(t, "board_7", roomName(realtime.BoardRoom(7)))
	assert.Equal(t, "all", roomName(realtime.RoomAll))
}

func intPtr(v int) *int { return &v }
