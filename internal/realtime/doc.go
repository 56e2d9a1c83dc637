// Package realtime tracks live client connections and fans board events out to them.
//
// The Registry owns connection records and room memberships under one lock, so
// registration, subscription changes, and teardown stay atomic. Broadcaster
// resolves recipients and writes through each connection's Sink. Monitor issues
// heartbeat probes and reaps connections that stop answering or go idle.
// Transports (internal/ws, internal/socketio) stay behind the Sink interface.
package realtime
