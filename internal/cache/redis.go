package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// NewRedisClient creates a go-redis client from a URL
// (e.g. "redis://localhost:6379") and installs the metrics hook. Callers
// own the returned client and should Close it on shutdown.
func NewRedisClient(redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	rdb.AddHook(&MetricsHook{})
	return rdb, nil
}

// Redis caches board summaries in Redis as JSON values. A circuit breaker
// guards every call, so a dead Redis fails fast and reads degrade to
// recomputation instead of stalling request handlers.
type Redis struct {
	rdb goredis.Cmdable
	cb  *gobreaker.CircuitBreaker
	ttl time.Duration
}

// NewRedis wraps rdb in a summary cache with the given entry TTL. The
// breaker opens at a 60% failure rate over at least five calls and probes
// again after 30 seconds.
func NewRedis(rdb goredis.Cmdable, ttl time.Duration) *Redis {
	settings := gobreaker.Settings{
		Name:        "summary-cache",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// A missing key is an answer, not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, goredis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}

	return &Redis{
		rdb: rdb,
		cb:  gobreaker.NewCircuitBreaker(settings),
		ttl: ttl,
	}
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func summaryKey(boardID int64) string {
	return "summary_cache:" + strconv.FormatInt(boardID, 10)
}

func (c *Redis) Get(ctx context.Context, boardID int64) (*domain.BoardSummary, bool) {
	result, err := c.cb.Execute(func() (any, error) {
		return c.rdb.Get(ctx, summaryKey(boardID)).Bytes()
	})
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Summary cache GET failed", "board_id", boardID, "error", err)
		}
		metrics.SummaryCacheMisses.Inc()
		return nil, false
	}

	data, ok := result.([]byte)
	if !ok {
		metrics.SummaryCacheMisses.Inc()
		return nil, false
	}

	var summary domain.BoardSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		slog.Warn("Failed to unmarshal cached summary", "board_id", boardID, "error", err)
		metrics.SummaryCacheMisses.Inc()
		return nil, false
	}

	metrics.SummaryCacheHits.Inc()
	return &summary, true
}

func (c *Redis) Set(ctx context.Context, boardID int64, summary *domain.BoardSummary) {
	encoded, err := json.Marshal(summary)
	if err != nil {
		slog.Warn("Failed to marshal summary for cache", "board_id", boardID, "error", err)
		return
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, c.rdb.Set(ctx, summaryKey(boardID), encoded, c.ttl).Err()
	})
	if err != nil {
		slog.Warn("Failed to populate summary cache", "board_id", boardID, "error", err)
	}
}

func (c *Redis) Invalidate(ctx context.Context, boardID int64) {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.rdb.Del(ctx, summaryKey(boardID)).Err()
	})
	if err != nil {
		slog.Warn("Failed to invalidate summary cache", "board_id", boardID, "error", err)
	}
}

// State exposes the breaker state for tests and monitoring.
func (c *Redis) State() gobreaker.State {
	return c.cb.State()
}
