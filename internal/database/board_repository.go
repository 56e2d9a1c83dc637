package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// boardColumns must match the Scan order in scanBoard.
const boardColumns = `id, name, description, columns, created_at, updated_at`

// BoardRepo implements domain.BoardRepository backed by PostgreSQL.
type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func scanBoard(row pgx.Row) (*domain.Board, error) {
	var board domain.Board
	err := row.Scan(
		&board.ID, &board.Name, &board.Description, &board.Columns,
		&board.CreatedAt, &board.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &board, nil
}

func (r *BoardRepo) Create(ctx context.Context, board *domain.Board) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO boards (name, description, columns, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, board.Name, board.Description, board.Columns, board.CreatedAt, board.UpdatedAt).Scan(&board.ID)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}
	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id int64) (*domain.Board, error) {
	board, err := scanBoard(r.pool.QueryRow(ctx,
		`SELECT `+boardColumns+` FROM boards WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return board, nil
}

func (r *BoardRepo) List(ctx context.Context) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+boardColumns+` FROM boards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate boards: %w", err)
	}
	return boards, nil
}

func (r *BoardRepo) Update(ctx context.Context, board *domain.Board) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE boards
		SET name = $1, description = $2, columns = $3, updated_at = $4
		WHERE id = $5
	`, board.Name, board.Description, board.Columns, board.UpdatedAt, board.ID)
	if err != nil {
		return fmt.Errorf("failed to update board: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBoardNotFound
	}
	return nil
}

func (r *BoardRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBoardNotFound
	}
	return nil
}
