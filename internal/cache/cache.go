package cache

import (
	"context"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
)

// Summaries caches computed board summaries keyed by board ID. Entries
// expire after the backend's TTL; Invalidate drops one early after a
// mutation. Backends degrade silently, so any failure reads as a miss.
type Summaries interface {
	Get(ctx context.Context, boardID int64) (*domain.BoardSummary, bool)
	Set(ctx context.Context, boardID int64, summary *domain.BoardSummary)
	Invalidate(ctx context.Context, boardID int64)
}
