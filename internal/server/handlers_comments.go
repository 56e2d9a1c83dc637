package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	apperrors "github.com/EvanSchalton/agent-kanban-sub001/internal/errors"
	"github.com/labstack/echo/v4"
)

type addCommentRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

type commentResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentResponse(comment *domain.Comment) commentResponse {
	return commentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		Author:    comment.Author,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}
}

func (s *Server) handleAddComment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req addCommentRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	comment, err := s.service.AddComment(c.Request().Context(), id, req.Author, req.Text)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NotFoundError("ticket not found").WithField("ticket_id", id)
	}
	if err != nil {
		return serviceError(err, "add comment")
	}

	if err := c.JSON(http.StatusCreated, toCommentResponse(comment)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListComments(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	comments, err := s.service.ListComments(c.Request().Context(), id)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NotFoundError("ticket not found").WithField("ticket_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to list comments", err).WithField("ticket_id", id)
	}

	resp := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, toCommentResponse(comment))
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteComment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	err = s.service.DeleteComment(c.Request().Context(), id)
	if errors.Is(err, domain.ErrCommentNotFound) {
		return apperrors.NotFoundError("comment not found").WithField("comment_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to delete comment", err).WithField("comment_id", id)
	}

	if err := c.NoContent(http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}
