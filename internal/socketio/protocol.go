package socketio

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Engine.IO v4 packet types, the first byte of every frame.
type engineType byte

const (
	engineOpen    engineType = '0'
	engineClose   engineType = '1'
	enginePing    engineType = '2'
	enginePong    engineType = '3'
	engineMessage engineType = '4'
)

// Socket.IO packet types, the first byte after an engine message marker.
type socketType byte

const (
	socketConnect socketType = '0'
	socketEvent   socketType = '2'
	socketAck     socketType = '3'
)

var (
	errEmptyPacket  = errors.New("empty packet")
	errNotEvent     = errors.New("not an event packet")
	errMissingEvent = errors.New("missing event name")
	errBadEventBody = errors.New("malformed event payload")
	errBadAckPacket = errors.New("malformed ack packet")
	errMissingAckID = errors.New("missing ack id")
)

// openPayload is the handshake body the server sends inside the engine open
// packet.
type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

func encodeOpenPacket(sid string, pingInterval, pingTimeout time.Duration, maxPayload int64) (string, error) {
	body, err := json.Marshal(openPayload{
		SID:          sid,
		Upgrades:     []string{},
		PingInterval: pingInterval.Milliseconds(),
		PingTimeout:  pingTimeout.Milliseconds(),
		MaxPayload:   maxPayload,
	})
	if err != nil {
		return "", err
	}
	return string(engineOpen) + string(body), nil
}

// splitNamespace peels an optional "/ns," prefix off a socket payload. The
// default namespace "/" is implied when no prefix is present.
func splitNamespace(s string) (namespace, rest string) {
	if !strings.HasPrefix(s, "/") {
		return "/", s
	}
	comma := strings.IndexByte(s, ',')
	if comma == -1 {
		return "/", s
	}
	return s[:comma], s[comma+1:]
}

// splitAckID peels an optional decimal ack id off the front of a payload.
func splitAckID(s string) (id *int, rest string) {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return nil, s
	}
	v, err := strconv.Atoi(s[:n])
	if err != nil {
		return nil, s
	}
	return &v, s[n:]
}

// eventPacket is a decoded Socket.IO event: `2[/ns,][id]["name",args...]`.
type eventPacket struct {
	Namespace string
	AckID     *int
	Event     string
	Args      []json.RawMessage
}

func parseEventPacket(payload string) (eventPacket, error) {
	if payload == "" {
		return eventPacket{}, errEmptyPacket
	}
	if payload[0] != byte(socketEvent) {
		return eventPacket{}, errNotEvent
	}

	ns, rest := splitNamespace(payload[1:])
	id, rest := splitAckID(rest)
	if !strings.HasPrefix(rest, "[") {
		return eventPacket{}, errBadEventBody
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &arr); err != nil {
		return eventPacket{}, err
	}
	if len(arr) == 0 {
		return eventPacket{}, errMissingEvent
	}

	var name string
	if err := json.Unmarshal(arr[0], &name); err != nil {
		return eventPacket{}, errMissingEvent
	}
	return eventPacket{Namespace: ns, AckID: id, Event: name, Args: arr[1:]}, nil
}

// ackPacket is a decoded Socket.IO ack: `3[/ns,]id[args...]`.
type ackPacket struct {
	Namespace string
	ID        int
	Args      []json.RawMessage
}

func parseAckPacket(payload string) (ackPacket, error) {
	if payload == "" || payload[0] != byte(socketAck) {
		return ackPacket{}, errBadAckPacket
	}

	ns, rest := splitNamespace(payload[1:])
	id, rest := splitAckID(rest)
	if id == nil {
		return ackPacket{}, errMissingAckID
	}
	if !strings.HasPrefix(rest, "[") {
		return ackPacket{}, errBadAckPacket
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &arr); err != nil {
		return ackPacket{}, err
	}
	return ackPacket{Namespace: ns, ID: *id, Args: arr}, nil
}

func writeNamespace(b *strings.Builder, namespace string) {
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
}

func encodeEventPacket(namespace string, ackID *int, event string, args ...any) (string, error) {
	arr := make([]any, 0, 1+len(args))
	arr = append(arr, event)
	arr = append(arr, args...)
	body, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(socketEvent))
	writeNamespace(&b, namespace)
	if ackID != nil {
		b.WriteString(strconv.Itoa(*ackID))
	}
	b.Write(body)
	return b.String(), nil
}

// encodeConnectAck answers a namespace connect with the session id.
func encodeConnectAck(namespace, sid string) (string, error) {
	body, err := json.Marshal(map[string]string{"sid": sid})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(socketConnect))
	writeNamespace(&b, namespace)
	b.Write(body)
	return b.String(), nil
}

func encodeAckPacket(namespace string, ackID int, args ...any) (string, error) {
	if args == nil {
		args = make([]any, 0)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(socketAck))
	writeNamespace(&b, namespace)
	b.WriteString(strconv.Itoa(ackID))
	b.Write(body)
	return b.String(), nil
}

// packetTypeName maps an engine packet's first byte to a metric label.
func packetTypeName(first byte) string {
	switch engineType(first) {
	case engineOpen:
		return "open"
	case engineClose:
		return "close"
	case enginePing:
		return "ping"
	case enginePong:
		return "pong"
	case engineMessage:
		return "message"
	default:
		return "unknown"
	}
}
