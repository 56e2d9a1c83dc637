package domain

import (
	"context"
	"time"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ValidPriority reports whether p is one of the accepted priority levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Ticket struct {
	ID                 int64
	BoardID            int64
	Title              string
	Description        string
	AcceptanceCriteria string
	Column             string
	Priority           string
	Assignee           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TicketFilter narrows ListByBoard results. Zero values match everything.
type TicketFilter struct {
	Column   string
	Assignee string
}

type TicketRepository interface {
	Create(ctx context.Context, ticket *Ticket) error
	GetByID(ctx context.Context, id int64) (*Ticket, error)
	ListByBoard(ctx context.Context, boardID int64, filter TicketFilter) ([]*Ticket, error)
	Update(ctx context.Context, ticket *Ticket) error
	Delete(ctx context.Context, id int64) error
	CountByColumn(ctx context.Context, boardID int64) (map[string]int, error)
}
