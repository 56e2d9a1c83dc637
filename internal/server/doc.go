// Package server is the HTTP adapter: an Echo server exposing the board,
// ticket and comment APIs, the realtime endpoints (native WebSocket and the
// Socket.IO bridge), health probes and Prometheus metrics.
//
// Handlers validate input, call the application service and translate domain
// errors into structured API errors. WebSocket upgrades pass through the
// connection limiter before reaching the realtime adapter.
package server
