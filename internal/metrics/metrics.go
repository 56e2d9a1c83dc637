package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime Registry Metrics
var (
	// RealtimeConnectionsCurrent tracks current number of registered realtime connections
	RealtimeConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_current",
			Help: "Current number of registered realtime connections",
		},
	)

	// RealtimeConnectionsTotal tracks total connection registrations by result
	RealtimeConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Total realtime connection registrations by result (accepted/replaced)",
		},
		[]string{"result"},
	)

	// RealtimeRoomsCurrent tracks current number of rooms with at least one member
	RealtimeRoomsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_rooms_current",
			Help: "Current number of rooms with at least one subscribed connection",
		},
	)

	// RealtimeMessagesSent tracks total messages delivered to connections
	RealtimeMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total messages successfully handed to connection writers",
		},
	)

	// RealtimeSendFailures tracks sends that failed and dropped the connection
	RealtimeSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_send_failures_total",
			Help: "Total sends that failed at the transport and dropped the connection",
		},
	)

	// RealtimeBroadcastDuration tracks room broadcast fan-out duration
	RealtimeBroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_broadcast_duration_seconds",
			Help:    "Room broadcast fan-out duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// RealtimeDragEventDuration tracks drag event fan-out duration (tight UI latency budget)
	RealtimeDragEventDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_drag_event_duration_seconds",
			Help:    "Drag event fan-out duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)
)

// Liveness Monitor Metrics
var (
	// HeartbeatsIssued tracks heartbeat probes sent to connections
	HeartbeatsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_heartbeats_issued_total",
			Help: "Total heartbeat probes issued to connections",
		},
	)

	// HeartbeatTimeouts tracks connections dropped for an unanswered heartbeat
	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_heartbeat_timeouts_total",
			Help: "Total connections dropped because a heartbeat went unanswered",
		},
	)

	// ConnectionsReaped tracks connections removed by the idle reaper
	ConnectionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_connections_reaped_total",
			Help: "Total idle connections removed by the cleanup pass",
		},
	)
)

// WebSocket Transport Metrics
var (
	// WebSocketMessageSendDuration tracks WebSocket message send duration
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// WebSocketConnectionDuration tracks WebSocket connection duration
	WebSocketConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_connection_duration_seconds",
			Help:    "WebSocket connection duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)

	// WebSocketPingFailures tracks WebSocket ping failures
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures (client not responding)",
		},
	)

	// WebSocketSlowClientsEvicted tracks clients evicted for a full send buffer
	WebSocketSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_clients_evicted_total",
			Help: "Total WebSocket clients evicted because their send buffer filled",
		},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/ip_limit/global_limit)",
		},
		[]string{"reason"},
	)

	// WebSocketConnectionCapacity tracks current connection capacity utilization as percentage
	WebSocketConnectionCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connection_capacity_percent",
			Help: "Current WebSocket connection capacity utilization (0-100%)",
		},
	)

	// WebSocketUniqueIPs tracks number of unique IP addresses with active connections
	WebSocketUniqueIPs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_unique_ips",
			Help: "Number of unique IP addresses with active WebSocket connections",
		},
	)
)

// Socket.IO Bridge Metrics
var (
	// SocketIOConnectionsCurrent tracks current Socket.IO connections
	SocketIOConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "socketio_connections_current",
			Help: "Current number of Socket.IO bridge connections",
		},
	)

	// SocketIOPacketsTotal tracks Socket.IO packets by direction and type
	SocketIOPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socketio_packets_total",
			Help: "Total Socket.IO packets by direction (in/out) and packet type",
		},
		[]string{"direction", "type"},
	)

	// SocketIOProtocolErrors tracks malformed Socket.IO frames
	SocketIOProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socketio_protocol_errors_total",
			Help: "Total malformed or unparseable Socket.IO frames received",
		},
	)
)

// Summary Cache Metrics
var (
	// SummaryCacheHits tracks board summary cache hits
	SummaryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_cache_hits_total",
			Help: "Total number of board summary cache hits",
		},
	)

	// SummaryCacheMisses tracks board summary cache misses
	SummaryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_cache_misses_total",
			Help: "Total number of board summary cache misses",
		},
	)

	// SummaryCacheSize tracks current number of cached board summaries
	SummaryCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "summary_cache_entries",
			Help: "Current number of entries in the board summary cache",
		},
	)

	// SummaryCacheEvictions tracks number of expired entries evicted
	SummaryCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_cache_evictions_total",
			Help: "Total number of expired board summary entries evicted",
		},
	)

	// SummaryComputations tracks summary rebuilds that hit the repositories
	SummaryComputations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_computations_total",
			Help: "Total board summary computations that fell through to the store",
		},
	)
)

// Redis Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks failed Redis connection attempts
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total number of failed Redis connection attempts",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBConnectionsCurrent tracks current database connections by state
	DBConnectionsCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections_current",
			Help: "Current database connections by state (active/idle)",
		},
		[]string{"state"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)

// HTTP Error Metrics
// Note: http_errors_total{type} is provided by internal/errors package
