package database

import (
	"context"
	"fmt"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// moveColumns must match the Scan order in the ListByTicket loop.
const moveColumns = `id, ticket_id, board_id, from_column, to_column, moved_at`

// HistoryRepo implements domain.HistoryRepository backed by PostgreSQL.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

func (r *HistoryRepo) Record(ctx context.Context, move *domain.ColumnMove) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ticket_moves (ticket_id, board_id, from_column, to_column, moved_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, move.TicketID, move.BoardID, move.FromColumn, move.ToColumn, move.MovedAt).Scan(&move.ID)
	if isForeignKeyViolation(err) {
		return domain.ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to record move: %w", err)
	}
	return nil
}

func (r *HistoryRepo) ListByTicket(ctx context.Context, ticketID int64) ([]*domain.ColumnMove, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+moveColumns+` FROM ticket_moves WHERE ticket_id = $1 ORDER BY id`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}
	defer rows.Close()

	var moves []*domain.ColumnMove
	for rows.Next() {
		var move domain.ColumnMove
		err := rows.Scan(
			&move.ID, &move.TicketID, &move.BoardID,
			&move.FromColumn, &move.ToColumn, &move.MovedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		moves = append(moves, &move)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moves: %w", err)
	}
	return moves, nil
}

func (r *HistoryRepo) ListByBoard(ctx context.Context, boardID int64) ([]*domain.ColumnMove, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+moveColumns+` FROM ticket_moves WHERE board_id = $1 ORDER BY id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list board moves: %w", err)
	}
	defer rows.Close()

	var moves []*domain.ColumnMove
	for rows.Next() {
		var move domain.ColumnMove
		err := rows.Scan(
			&move.ID, &move.TicketID, &move.BoardID,
			&move.FromColumn, &move.ToColumn, &move.MovedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		moves = append(moves, &move)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moves: %w", err)
	}
	return moves, nil
}

func (r *HistoryRepo) CountByBoard(ctx context.Context, boardID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ticket_moves WHERE board_id = $1`, boardID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count moves: %w", err)
	}
	return count, nil
}
