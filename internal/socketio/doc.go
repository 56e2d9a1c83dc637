// Package socketio is a minimal Engine.IO v4 / Socket.IO v5 server that
// bridges legacy clients onto the realtime core. Only the websocket
// transport is served. Inbound join and leave events map the bridge's
// "board_{id}" room names onto core rooms, and every registered bridge
// connection receives the same envelopes as native WebSocket clients,
// re-encoded as Socket.IO events.
package socketio
