package domain

import (
	"context"
	"time"
)

type Comment struct {
	ID        int64
	TicketID  int64
	Author    string
	Text      string
	CreatedAt time.Time
}

type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	GetByID(ctx context.Context, id int64) (*Comment, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]*Comment, error)
	Delete(ctx context.Context, id int64) error
}
