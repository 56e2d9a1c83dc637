package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
)

// dragBroadcastBudget is the latency target for propagating a ticket move to
// subscribers. Moves that take longer are logged at warning level so slow
// drags show up before users complain.
const dragBroadcastBudget = 50 * time.Millisecond

// CreateTicketInput carries the fields accepted when creating a ticket.
// Column may be empty, in which case the ticket starts in the board's first
// column. Priority may be empty, in which case it defaults to medium.
type CreateTicketInput struct {
	Title              string
	Description        string
	AcceptanceCriteria string
	Column             string
	Priority           string
	Assignee           string
}

// UpdateTicketInput carries a partial ticket update. Nil fields stay
// unchanged. Column changes go through MoveTicket so they land in history.
type UpdateTicketInput struct {
	Title              *string
	Description        *string
	AcceptanceCriteria *string
	Priority           *string
	Assignee           *string
}

func ticketPayload(ticket *domain.Ticket) map[string]any {
	return map[string]any{
		"id":                  ticket.ID,
		"board_id":            ticket.BoardID,
		"title":               ticket.Title,
		"description":         ticket.Description,
		"acceptance_criteria": ticket.AcceptanceCriteria,
		"column":              ticket.Column,
		"priority":            ticket.Priority,
		"assignee":            ticket.Assignee,
		"created_at":          ticket.CreatedAt,
		"updated_at":          ticket.UpdatedAt,
	}
}

// CreateTicket validates and stores a new ticket on a board, then announces
// it to the board's subscribers.
func (s *Service) CreateTicket(ctx context.Context, boardID int64, input CreateTicketInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "must not be empty")
	}

	board, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}

	column := input.Column
	if column == "" {
		column = board.Columns[0]
	} else if !board.HasColumn(column) {
		return nil, domain.ErrUnknownColumn
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, invalid("priority", "must be one of low, medium, high, critical")
	}

	now := s.clock.Now().UTC()
	ticket := &domain.Ticket{
		BoardID:            boardID,
		Title:              title,
		Description:        input.Description,
		AcceptanceCriteria: input.AcceptanceCriteria,
		Column:             column,
		Priority:           priority,
		Assignee:           input.Assignee,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.summaries.Invalidate(ctx, boardID)
	s.publishToBoard(boardID, domain.EventTicketCreated, ticketPayload(ticket))
	return ticket, nil
}

// GetTicket retrieves a ticket by ID.
func (s *Service) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// ListTickets retrieves a board's tickets, optionally narrowed by column or
// assignee.
func (s *Service) ListTickets(ctx context.Context, boardID int64, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	if _, err := s.boards.GetByID(ctx, boardID); err != nil {
		return nil, err
	}
	return s.tickets.ListByBoard(ctx, boardID, filter)
}

// UpdateTicket applies a partial update to a ticket's descriptive fields.
// Summaries stay valid because column and board never change here.
func (s *Service) UpdateTicket(ctx context.Context, id int64, input UpdateTicketInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, invalid("title", "must not be empty")
		}
		ticket.Title = title
	}
	if input.Description != nil {
		ticket.Description = *input.Description
	}
	if input.AcceptanceCriteria != nil {
		ticket.AcceptanceCriteria = *input.AcceptanceCriteria
	}
	if input.Priority != nil {
		if !domain.ValidPriority(*input.Priority) {
			return nil, invalid("priority", "must be one of low, medium, high, critical")
		}
		ticket.Priority = *input.Priority
	}
	if input.Assignee != nil {
		ticket.Assignee = *input.Assignee
	}

	ticket.UpdatedAt = s.clock.Now().UTC()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishToBoard(ticket.BoardID, domain.EventTicketUpdated, ticketPayload(ticket))
	return ticket, nil
}

// DeleteTicket removes a ticket and its comments.
func (s *Service) DeleteTicket(ctx context.Context, id int64) error {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.tickets.Delete(ctx, id); err != nil {
		return err
	}

	s.summaries.Invalidate(ctx, ticket.BoardID)
	s.publishToBoard(ticket.BoardID, domain.EventTicketDeleted, map[string]any{
		"id":       ticket.ID,
		"board_id": ticket.BoardID,
		"column":   ticket.Column,
	})
	return nil
}

// MoveTicket moves a ticket to another column on its board, records the move
// in history, and pushes the change to subscribers on the drag fast path.
// Moving a ticket to the column it is already in succeeds without touching
// storage.
func (s *Service) MoveTicket(ctx context.Context, ticketID int64, toColumn string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	board, err := s.boards.GetByID(ctx, ticket.BoardID)
	if err != nil {
		return nil, err
	}
	if !board.HasColumn(toColumn) {
		return nil, domain.ErrUnknownColumn
	}

	if ticket.Column == toColumn {
		return ticket, nil
	}

	fromColumn := ticket.Column
	now := s.clock.Now().UTC()
	ticket.Column = toColumn
	ticket.UpdatedAt = now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	move := &domain.ColumnMove{
		TicketID:   ticket.ID,
		BoardID:    ticket.BoardID,
		FromColumn: fromColumn,
		ToColumn:   toColumn,
		MovedAt:    now,
	}
	if err := s.history.Record(ctx, move); err != nil {
		// The column change already committed; a gap in history is
		// better than a failed drag.
		slog.Error("Failed to record ticket move", "ticket_id", ticket.ID, "error", err)
	}

	s.summaries.Invalidate(ctx, ticket.BoardID)

	payload := ticketPayload(ticket)
	payload["from_column"] = fromColumn
	payload["to_column"] = toColumn

	start := s.clock.Now()
	delivered := s.publisher.BroadcastDragEvent(realtime.BoardRoom(ticket.BoardID), domain.EventTicketMoved, payload)
	delivered += s.publisher.BroadcastToRoom(realtime.RoomAll, realtime.NewEnvelope(domain.EventTicketMoved, payload))
	elapsed := s.clock.Since(start)

	if elapsed > dragBroadcastBudget {
		slog.Warn("Ticket move broadcast over budget",
			"ticket_id", ticket.ID,
			"board_id", ticket.BoardID,
			"duration_ms", elapsed.Milliseconds(),
			"delivered", delivered)
	} else {
		slog.Info("Ticket moved",
			"ticket_id", ticket.ID,
			"board_id", ticket.BoardID,
			"from", fromColumn,
			"to", toColumn,
			"duration_ms", elapsed.Milliseconds(),
			"delivered", delivered)
	}
	return ticket, nil
}

// TicketHistory returns a ticket's column moves, oldest first.
func (s *Service) TicketHistory(ctx context.Context, ticketID int64) ([]*domain.ColumnMove, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID)
}
