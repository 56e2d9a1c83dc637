package app

import (
	"context"
	"strconv"
	"strings"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/metrics"
)

// CreateBoardInput carries the fields accepted when creating a board.
// Columns may be empty, in which case the default workflow applies.
type CreateBoardInput struct {
	Name        string
	Description string
	Columns     []string
}

// UpdateBoardInput carries a partial board update. Nil fields stay unchanged.
type UpdateBoardInput struct {
	Name        *string
	Description *string
	Columns     []string
}

func validateColumns(columns []string) ([]string, error) {
	if len(columns) == 0 {
		return nil, invalid("columns", "must not be empty")
	}

	cleaned := make([]string, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		column = strings.TrimSpace(column)
		if column == "" {
			return nil, invalid("columns", "column names must not be empty")
		}
		if _, dup := seen[column]; dup {
			return nil, invalid("columns", "duplicate column "+strconv.Quote(column))
		}
		seen[column] = struct{}{}
		cleaned = append(cleaned, column)
	}
	return cleaned, nil
}

func boardPayload(board *domain.Board) map[string]any {
	return map[string]any{
		"id":          board.ID,
		"name":        board.Name,
		"description": board.Description,
		"columns":     board.Columns,
		"created_at":  board.CreatedAt,
		"updated_at":  board.UpdatedAt,
	}
}

// CreateBoard validates and stores a new board, then announces it to every
// connected client.
func (s *Service) CreateBoard(ctx context.Context, input CreateBoardInput) (*domain.Board, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}

	columns := input.Columns
	if len(columns) == 0 {
		columns = domain.DefaultColumns
	}
	columns, err := validateColumns(columns)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	board := &domain.Board{
		Name:        name,
		Description: input.Description,
		Columns:     columns,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.boards.Create(ctx, board); err != nil {
		return nil, err
	}

	s.publishBoardEvent(domain.EventBoardCreated, boardPayload(board))
	return board, nil
}

// GetBoard retrieves a board by ID.
func (s *Service) GetBoard(ctx context.Context, id int64) (*domain.Board, error) {
	return s.boards.GetByID(ctx, id)
}

// ListBoards retrieves all boards ordered by ID.
func (s *Service) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	return s.boards.List(ctx)
}

// UpdateBoard applies a partial update. Tickets sitting in a column that an
// update removed keep their old column name; they still count in summaries.
func (s *Service) UpdateBoard(ctx context.Context, id int64, input UpdateBoardInput) (*domain.Board, error) {
	board, err := s.boards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, invalid("name", "must not be empty")
		}
		board.Name = name
	}
	if input.Description != nil {
		board.Description = *input.Description
	}
	if input.Columns != nil {
		columns, err := validateColumns(input.Columns)
		if err != nil {
			return nil, err
		}
		board.Columns = columns
	}

	board.UpdatedAt = s.clock.Now().UTC()
	if err := s.boards.Update(ctx, board); err != nil {
		return nil, err
	}

	s.summaries.Invalidate(ctx, board.ID)
	s.publishBoardEvent(domain.EventBoardUpdated, boardPayload(board))
	return board, nil
}

// DeleteBoard removes a board and everything on it.
func (s *Service) DeleteBoard(ctx context.Context, id int64) error {
	board, err := s.boards.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.boards.Delete(ctx, id); err != nil {
		return err
	}

	s.summaries.Invalidate(ctx, id)
	s.publishBoardEvent(domain.EventBoardDeleted, map[string]any{
		"id":   board.ID,
		"name": board.Name,
	})
	return nil
}

// GetBoardSummary returns the cached per-column ticket counts for a board,
// recomputing on a miss. Concurrent misses for the same board collapse into
// one computation.
func (s *Service) GetBoardSummary(ctx context.Context, boardID int64) (*domain.BoardSummary, error) {
	if summary, ok := s.summaries.Get(ctx, boardID); ok {
		return summary, nil
	}

	result, err, _ := s.summaryGroup.Do(strconv.FormatInt(boardID, 10), func() (any, error) {
		board, err := s.boards.GetByID(ctx, boardID)
		if err != nil {
			return nil, err
		}

		counts, err := s.tickets.CountByColumn(ctx, boardID)
		if err != nil {
			return nil, err
		}
		metrics.SummaryComputations.Inc()

		// Known columns appear even when empty; stranded columns keep
		// their counts.
		ticketCounts := make(map[string]int, len(board.Columns))
		for _, column := range board.Columns {
			ticketCounts[column] = 0
		}
		total := 0
		for column, n := range counts {
			ticketCounts[column] = n
			total += n
		}

		summary := &domain.BoardSummary{
			BoardID:      board.ID,
			Name:         board.Name,
			TicketCounts: ticketCounts,
			TotalTickets: total,
			GeneratedAt:  s.clock.Now().UTC(),
		}
		s.summaries.Set(ctx, boardID, summary)
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.BoardSummary), nil
}

// GetBoardStatistics aggregates ticket counts and move history for a board.
func (s *Service) GetBoardStatistics(ctx context.Context, boardID int64) (*domain.BoardStatistics, error) {
	board, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}

	counts, err := s.tickets.CountByColumn(ctx, boardID)
	if err != nil {
		return nil, err
	}

	moves, err := s.history.ListByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	totalMoves, err := s.history.CountByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	perColumn := make(map[string]int, len(board.Columns))
	for _, column := range board.Columns {
		perColumn[column] = 0
	}
	total := 0
	for column, n := range counts {
		perColumn[column] = n
		total += n
	}

	return &domain.BoardStatistics{
		BoardID:            board.ID,
		TotalTickets:       total,
		PerColumn:          perColumn,
		TotalMoves:         totalMoves,
		DoneTickets:        counts[board.DoneColumn()],
		AvgSecondsInColumn: averageDwellTimes(moves),
	}, nil
}

// averageDwellTimes derives per-column residence times from move history. A
// completed stay in a column spans the move that brought the ticket there
// and the next move that took it away.
func averageDwellTimes(moves []*domain.ColumnMove) map[string]float64 {
	byTicket := make(map[int64][]*domain.ColumnMove)
	for _, move := range moves {
		byTicket[move.TicketID] = append(byTicket[move.TicketID], move)
	}

	sums := make(map[string]float64)
	stays := make(map[string]int)
	for _, ticketMoves := range byTicket {
		for i := 1; i < len(ticketMoves); i++ {
			prev, next := ticketMoves[i-1], ticketMoves[i]
			if prev.ToColumn != next.FromColumn {
				continue
			}
			sums[prev.ToColumn] += next.MovedAt.Sub(prev.MovedAt).Seconds()
			stays[prev.ToColumn]++
		}
	}

	averages := make(map[string]float64, len(sums))
	for column, sum := range sums {
		averages[column] = sum / float64(stays[column])
	}
	return averages
}
