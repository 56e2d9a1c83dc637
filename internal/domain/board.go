package domain

import (
	"context"
	"slices"
	"time"
)

// DefaultColumns is the workflow assigned to boards created without an
// explicit column list. Order matters: the last column counts as done.
var DefaultColumns = []string{"Not Started", "In Progress", "Blocked", "Ready for QC", "Done"}

type Board struct {
	ID          int64
	Name        string
	Description string
	Columns     []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasColumn reports whether name is part of the board's workflow.
func (b *Board) HasColumn(name string) bool {
	return slices.Contains(b.Columns, name)
}

// DoneColumn returns the terminal column of the board's workflow.
func (b *Board) DoneColumn() string {
	if len(b.Columns) == 0 {
		return ""
	}
	return b.Columns[len(b.Columns)-1]
}

type BoardRepository interface {
	Create(ctx context.Context, board *Board) error
	GetByID(ctx context.Context, id int64) (*Board, error)
	List(ctx context.Context) ([]*Board, error)
	Update(ctx context.Context, board *Board) error
	Delete(ctx context.Context, id int64) error
}
