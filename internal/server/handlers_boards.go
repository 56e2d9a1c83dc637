package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/app"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	apperrors "github.com/EvanSchalton/agent-kanban-sub001/internal/errors"
	"github.com/labstack/echo/v4"
)

func parseIDParam(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.ValidationError(fmt.Sprintf("invalid %s", name)).WithField(name, raw)
	}
	return id, nil
}

// serviceError maps the cross-cutting failure modes every use case shares.
// Handlers check their own sentinels first and fall back to this.
func serviceError(err error, action string) error {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		return apperrors.ValidationError(verr.Error()).WithField("field", verr.Field)
	}
	return apperrors.InternalError("failed to "+action, err)
}

type createBoardRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
}

type updateBoardRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Columns     []string `json:"columns"`
}

type boardResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Columns     []string  `json:"columns"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toBoardResponse(board *domain.Board) boardResponse {
	return boardResponse{
		ID:          board.ID,
		Name:        board.Name,
		Description: board.Description,
		Columns:     board.Columns,
		CreatedAt:   board.CreatedAt,
		UpdatedAt:   board.UpdatedAt,
	}
}

func (s *Server) handleCreateBoard(c echo.Context) error {
	ctx := c.Request().Context()

	var req createBoardRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	board, err := s.service.CreateBoard(ctx, app.CreateBoardInput{
		Name:        req.Name,
		Description: req.Description,
		Columns:     req.Columns,
	})
	if err != nil {
		return serviceError(err, "create board")
	}

	if err := c.JSON(http.StatusCreated, toBoardResponse(board)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListBoards(c echo.Context) error {
	boards, err := s.service.ListBoards(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list boards", err)
	}

	resp := make([]boardResponse, 0, len(boards))
	for _, board := range boards {
		resp = append(resp, toBoardResponse(board))
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetBoard(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	board, err := s.service.GetBoard(c.Request().Context(), id)
	if errors.Is(err, domain.ErrBoardNotFound) {
		return apperrors.NotFoundError("board not found").WithField("board_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to load board", err).WithField("board_id", id)
	}

	if err := c.JSON(http.StatusOK, toBoardResponse(board)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateBoard(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateBoardRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	board, err := s.service.UpdateBoard(c.Request().Context(), id, app.UpdateBoardInput{
		Name:        req.Name,
		Description: req.Description,
		Columns:     req.Columns,
	})
	if errors.Is(err, domain.ErrBoardNotFound) {
		return apperrors.NotFoundError("board not found").WithField("board_id", id)
	}
	if err != nil {
		return serviceError(err, "update board")
	}

	if err := c.JSON(http.StatusOK, toBoardResponse(board)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteBoard(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	err = s.service.DeleteBoard(c.Request().Context(), id)
	if errors.Is(err, domain.ErrBoardNotFound) {
		return apperrors.NotFoundError("board not found").WithField("board_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to delete board", err).WithField("board_id", id)
	}

	if err := c.NoContent(http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}

func (s *Server) handleBoardSummary(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	summary, err := s.service.GetBoardSummary(c.Request().Context(), id)
	if errors.Is(err, domain.ErrBoardNotFound) {
		return apperrors.NotFoundError("board not found").WithField("board_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to build board summary", err).WithField("board_id", id)
	}

	if err := c.JSON(http.StatusOK, summary); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleBoardStatistics(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	stats, err := s.service.GetBoardStatistics(c.Request().Context(), id)
	if errors.Is(err, domain.ErrBoardNotFound) {
		return apperrors.NotFoundError("board not found").WithField("board_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to build board statistics", err).WithField("board_id", id)
	}

	if err := c.JSON(http.StatusOK, stats); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
