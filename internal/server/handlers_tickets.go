package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/app"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	apperrors "github.com/EvanSchalton/agent-kanban-sub001/internal/errors"
	"github.com/labstack/echo/v4"
)

type createTicketRequest struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	AcceptanceCriteria string `json:"acceptance_criteria"`
	Column             string `json:"column"`
	Priority           string `json:"priority"`
	Assignee           string `json:"assignee"`
}

type updateTicketRequest struct {
	Title              *string `json:"title"`
	Description        *string `json:"description"`
	AcceptanceCriteria *string `json:"acceptance_criteria"`
	Priority           *string `json:"priority"`
	Assignee           *string `json:"assignee"`
}

type moveTicketRequest struct {
	Column string `json:"column"`
}

type ticketResponse struct {
	ID                 int64     `json:"id"`
	BoardID            int64     `json:"board_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	AcceptanceCriteria string    `json:"acceptance_criteria"`
	Column             string    `json:"column"`
	Priority           string    `json:"priority"`
	Assignee           string    `json:"assignee"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type columnMoveResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	BoardID    int64     `json:"board_id"`
	FromColumn string    `json:"from_column"`
	ToColumn   string    `json:"to_column"`
	MovedAt    time.Time `json:"moved_at"`
}

func toTicketResponse(ticket *domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:                 ticket.ID,
		BoardID:            ticket.BoardID,
		Title:              ticket.Title,
		Description:        ticket.Description,
		AcceptanceCriteria: ticket.AcceptanceCriteria,
		Column:             ticket.Column,
		Priority:           ticket.Priority,
		Assignee:           ticket.Assignee,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
	}
}

func (s *Server) handleCreateTicket(c echo.Context) error {
	boardID, err := parseIDParam(c, "board_id")
	if err != nil {
		return err
	}

	var req createTicketRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	ticket, err := s.service.CreateTicket(c.Request().Context(), boardID, app.CreateTicketInput{
		Title:              req.Title,
		Description:        req.Description,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Column:             req.Column,
		Priority:           req.Priority,
		Assignee:           req.Assignee,
	})
	if errors.Is(err, domain.ErrBoardNotFound) {
		return apperrors.NotFoundError("board not found").WithField("board_id", boardID)
	}
	if errors.Is(err, domain.ErrUnknownColumn) {
		return apperrors.ValidationError("column does not exist on board").
			WithField("board_id", boardID).
			WithField("column", req.Column)
	}
	if err != nil {
		return serviceError(err, "create ticket")
	}

	if err := c.JSON(http.StatusCreated, toTicketResponse(ticket)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListTickets(c echo.Context) error {
	boardID, err := parseIDParam(c, "board_id")
	if err != nil {
		return err
	}

	filter := domain.TicketFilter{
		Column:   c.QueryParam("column"),
		Assignee: c.QueryParam("assignee"),
	}

	tickets, err := s.service.ListTickets(c.Request().Context(), boardID, filter)
	if errors.Is(err, domain.ErrBoardNotFound) {
		return apperrors.NotFoundError("board not found").WithField("board_id", boardID)
	}
	if err != nil {
		return apperrors.InternalError("failed to list tickets", err).WithField("board_id", boardID)
	}

	resp := make([]ticketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		resp = append(resp, toTicketResponse(ticket))
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetTicket(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	ticket, err := s.service.GetTicket(c.Request().Context(), id)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NotFoundError("ticket not found").WithField("ticket_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to load ticket", err).WithField("ticket_id", id)
	}

	if err := c.JSON(http.StatusOK, toTicketResponse(ticket)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateTicket(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateTicketRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	ticket, err := s.service.UpdateTicket(c.Request().Context(), id, app.UpdateTicketInput{
		Title:              req.Title,
		Description:        req.Description,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Priority:           req.Priority,
		Assignee:           req.Assignee,
	})
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NotFoundError("ticket not found").WithField("ticket_id", id)
	}
	if err != nil {
		return serviceError(err, "update ticket")
	}

	if err := c.JSON(http.StatusOK, toTicketResponse(ticket)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteTicket(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	err = s.service.DeleteTicket(c.Request().Context(), id)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NotFoundError("ticket not found").WithField("ticket_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to delete ticket", err).WithField("ticket_id", id)
	}

	if err := c.NoContent(http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}

func (s *Server) handleMoveTicket(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req moveTicketRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Column == "" {
		return apperrors.ValidationError("column must not be empty").WithField("ticket_id", id)
	}

	ticket, err := s.service.MoveTicket(c.Request().Context(), id, req.Column)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NotFoundError("ticket not found").WithField("ticket_id", id)
	}
	if errors.Is(err, domain.ErrUnknownColumn) {
		return apperrors.ValidationError("column does not exist on board").
			WithField("ticket_id", id).
			WithField("column", req.Column)
	}
	if err != nil {
		return apperrors.InternalError("failed to move ticket", err).WithField("ticket_id", id)
	}

	if err := c.JSON(http.StatusOK, toTicketResponse(ticket)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleTicketHistory(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	moves, err := s.service.TicketHistory(c.Request().Context(), id)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NotFoundError("ticket not found").WithField("ticket_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to load ticket history", err).WithField("ticket_id", id)
	}

	resp := make([]columnMoveResponse, 0, len(moves))
	for _, move := range moves {
		resp = append(resp, columnMoveResponse{
			ID:         move.ID,
			TicketID:   move.TicketID,
			BoardID:    move.BoardID,
			FromColumn: move.FromColumn,
			ToColumn:   move.ToColumn,
			MovedAt:    move.MovedAt,
		})
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
