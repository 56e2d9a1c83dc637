// Package ws adapts raw WebSocket connections onto the realtime registry.
//
// Each accepted connection gets a buffered writer goroutine that implements
// realtime.Sink, so fan-outs enqueue instead of blocking on peer I/O. The
// read loop turns inbound control frames (subscribe, heartbeat_ack, ping)
// into registry and monitor calls. Connection admission (global, per-IP,
// rate) is handled here too.
package ws
