package domain

import (
	"context"
	"time"
)

// ColumnMove records one ticket transition between workflow columns. Moves
// are append-only and feed the board statistics endpoint.
type ColumnMove struct {
	ID         int64
	TicketID   int64
	BoardID    int64
	FromColumn string
	ToColumn   string
	MovedAt    time.Time
}

type HistoryRepository interface {
	Record(ctx context.Context, move *ColumnMove) error
	ListByTicket(ctx context.Context, ticketID int64) ([]*ColumnMove, error)
	ListByBoard(ctx context.Context, boardID int64) ([]*ColumnMove, error)
	CountByBoard(ctx context.Context, boardID int64) (int, error)
}
