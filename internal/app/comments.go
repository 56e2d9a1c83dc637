package app

import (
	"context"
	"strings"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
)

func commentPayload(comment *domain.Comment, boardID int64) map[string]any {
	return map[string]any{
		"id":         comment.ID,
		"ticket_id":  comment.TicketID,
		"board_id":   boardID,
		"author":     comment.Author,
		"text":       comment.Text,
		"created_at": comment.CreatedAt,
	}
}

// AddComment attaches a comment to a ticket and announces it to the board's
// subscribers. A blank author is stored as "anonymous".
func (s *Service) AddComment(ctx context.Context, ticketID int64, author, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "must not be empty")
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = "anonymous"
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:  ticketID,
		Author:    author,
		Text:      text,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.publishToBoard(ticket.BoardID, domain.EventCommentAdded, commentPayload(comment, ticket.BoardID))
	return comment, nil
}

// ListComments returns a ticket's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, ticketID int64) ([]*domain.Comment, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.comments.ListByTicket(ctx, ticketID)
}

// DeleteComment removes a single comment and announces the removal.
func (s *Service) DeleteComment(ctx context.Context, commentID int64) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	ticket, err := s.tickets.GetByID(ctx, comment.TicketID)
	if err != nil {
		return err
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		return err
	}

	s.publishToBoard(ticket.BoardID, domain.EventCommentDeleted, map[string]any{
		"id":        comment.ID,
		"ticket_id": comment.TicketID,
		"board_id":  ticket.BoardID,
	})
	return nil
}
