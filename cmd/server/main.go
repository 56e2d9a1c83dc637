package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/app"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/cache"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/config"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/database"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/logging"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/retry"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/server"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/socketio"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/store"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/version"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/ws"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const poolStatsInterval = 15 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The database often comes up after us on a fresh deploy, so connect
	// attempts retry. Bad credentials or a missing database never heal and
	// abort immediately.
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		BusyBackoff:    5 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Database connect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	pool, err := retry.Do(ctx, policy, classifyConnectError, func() (*pgxpool.Pool, error) {
		return database.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func classifyConnectError(err error) retry.Action {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000", "3D000": // bad credentials or missing database
			return retry.Stop
		case "53300", "57P03": // connection slots full or server still starting
			return retry.After
		}
	}
	return retry.Retry
}

func setupRedis(cfg *config.Config) *goredis.Client {
	client, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	return client
}

// samplePoolStats keeps the db_connections_current gauge in step with the
// pgx pool until ctx is cancelled.
func samplePoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			metrics.DBConnectionsCurrent.WithLabelValues("active").Set(float64(stat.AcquiredConns()))
			metrics.DBConnectionsCurrent.WithLabelValues("idle").Set(float64(stat.IdleConns()))
		}
	}
}

func runGracefulShutdown(srv *server.Server, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBackground()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.BuildTime, info.GoVersion).Set(1)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version)

	// Background goroutines (liveness monitor, pool stats) share one
	// lifecycle, cancelled during shutdown.
	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var (
		boards       domain.BoardRepository
		tickets      domain.TicketRepository
		comments     domain.CommentRepository
		history      domain.HistoryRepository
		healthChecks []server.HealthCheck
	)
	if cfg.DatabaseURL != "" {
		pool := setupDB(cfg)
		defer pool.Close()

		boards = database.NewBoardRepo(pool)
		tickets = database.NewTicketRepo(pool)
		comments = database.NewCommentRepo(pool)
		history = database.NewHistoryRepo(pool)
		healthChecks = append(healthChecks, server.HealthCheck{Name: "postgres", Check: pool.Ping})

		go samplePoolStats(backgroundCtx, pool)
	} else {
		slog.Info("DATABASE_URL not set, using in-memory store")
		st := store.New()
		boards, tickets, comments, history = st.Boards(), st.Tickets(), st.Comments(), st.History()
	}

	var summaries cache.Summaries
	if cfg.RedisURL != "" {
		redisClient := setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		summaries = cache.NewRedis(redisClient, cfg.SummaryCacheTTL)
		healthChecks = append(healthChecks, server.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		slog.Info("REDIS_URL not set, using in-memory summary cache")
		memory := cache.NewMemory(clock, cfg.SummaryCacheTTL)
		stopEviction := memory.StartEvictionTimer(time.Minute)
		defer stopEviction()
		summaries = memory
	}

	registry := realtime.NewRegistry(clock)
	broadcaster := realtime.NewBroadcaster(registry, clock)
	monitor := realtime.NewMonitor(registry, broadcaster, clock, realtime.MonitorConfig{
		ProbeInterval:    cfg.HeartbeatInterval,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		IdleTimeout:      cfg.IdleTimeout,
	})
	stats := realtime.NewStatsReporter(registry)
	go monitor.Run(backgroundCtx)

	checkOrigin := ws.NewCheckOrigin(cfg.AllowedOrigin, cfg.AppEnv != "production")
	adapter := ws.NewAdapter(registry, broadcaster, monitor, clock, checkOrigin)
	bridge := socketio.NewBridge(registry, monitor, clock, checkOrigin, socketio.Config{
		PingInterval: cfg.HeartbeatInterval,
		PingTimeout:  cfg.HeartbeatTimeout,
	})
	limits := ws.NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst)

	appSvc := app.NewService(boards, tickets, comments, history, broadcaster, summaries, clock)

	srv := server.NewServer(
		cfg,
		appSvc,
		http.HandlerFunc(adapter.Handle),
		http.HandlerFunc(bridge.Handle),
		limits,
		registry,
		monitor,
		stats,
		healthChecks,
	)

	done := runGracefulShutdown(srv, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
