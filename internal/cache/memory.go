package cache

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// Memory is an in-process TTL cache for board summaries.
type Memory struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[int64]memoryEntry
}

type memoryEntry struct {
	summary   domain.BoardSummary
	expiresAt time.Time
}

func NewMemory(clock clockwork.Clock, ttl time.Duration) *Memory {
	return &Memory{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[int64]memoryEntry),
	}
}

func (c *Memory) Get(_ context.Context, boardID int64) (*domain.BoardSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[boardID]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		metrics.SummaryCacheMisses.Inc()
		return nil, false
	}

	metrics.SummaryCacheHits.Inc()
	summary := entry.summary
	summary.TicketCounts = maps.Clone(summary.TicketCounts)
	return &summary, true
}

func (c *Memory) Set(_ context.Context, boardID int64, summary *domain.BoardSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Copy the counts map so later caller mutations cannot reach the cache.
	stored := *summary
	stored.TicketCounts = maps.Clone(stored.TicketCounts)
	c.entries[boardID] = memoryEntry{
		summary:   stored,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	metrics.SummaryCacheSize.Set(float64(len(c.entries)))
}

func (c *Memory) Invalidate(_ context.Context, boardID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, boardID)
	metrics.SummaryCacheSize.Set(float64(len(c.entries)))
}

// Size reports the number of cached summaries, expired entries included.
func (c *Memory) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EvictExpired removes entries past their TTL and reports how many went.
func (c *Memory) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}

	if evicted > 0 {
		metrics.SummaryCacheEvictions.Add(float64(evicted))
		metrics.SummaryCacheSize.Set(float64(len(c.entries)))
	}
	return evicted
}

// StartEvictionTimer runs a periodic goroutine that evicts expired entries.
// Returns a stop function that should be deferred.
func (c *Memory) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				evicted := c.EvictExpired()
				if evicted > 0 {
					slog.Debug("Evicted expired summary cache entries", "count", evicted, "remaining", c.Size())
				}

			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
