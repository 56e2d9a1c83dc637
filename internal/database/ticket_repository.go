package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ticketColumns must match the Scan order in scanTicket. The column holding
// a ticket's workflow position is named column_name because COLUMN is a
// reserved word in PostgreSQL.
const ticketColumns = `id, board_id, title, description, acceptance_criteria, column_name, priority, assignee, created_at, updated_at`

// foreignKeyViolation is the PostgreSQL error code raised when an INSERT
// references a missing parent row.
const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// TicketRepo implements domain.TicketRepository backed by PostgreSQL.
type TicketRepo struct {
	pool *pgxpool.Pool
}

func NewTicketRepo(pool *pgxpool.Pool) *TicketRepo {
	return &TicketRepo{pool: pool}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := row.Scan(
		&ticket.ID, &ticket.BoardID, &ticket.Title, &ticket.Description,
		&ticket.AcceptanceCriteria, &ticket.Column, &ticket.Priority,
		&ticket.Assignee, &ticket.CreatedAt, &ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *TicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tickets (board_id, title, description, acceptance_criteria, column_name, priority, assignee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, ticket.BoardID, ticket.Title, ticket.Description, ticket.AcceptanceCriteria,
		ticket.Column, ticket.Priority, ticket.Assignee, ticket.CreatedAt, ticket.UpdatedAt).Scan(&ticket.ID)
	if isForeignKeyViolation(err) {
		return domain.ErrBoardNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (r *TicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

func (r *TicketRepo) ListByBoard(ctx context.Context, boardID int64, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE board_id = $1`
	args := []any{boardID}
	if filter.Column != "" {
		args = append(args, filter.Column)
		query += fmt.Sprintf(" AND column_name = $%d", len(args))
	}
	if filter.Assignee != "" {
		args = append(args, filter.Assignee)
		query += fmt.Sprintf(" AND assignee = $%d", len(args))
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

func (r *TicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET title = $1, description = $2, acceptance_criteria = $3, column_name = $4, priority = $5, assignee = $6, updated_at = $7
		WHERE id = $8
	`, ticket.Title, ticket.Description, ticket.AcceptanceCriteria, ticket.Column,
		ticket.Priority, ticket.Assignee, ticket.UpdatedAt, ticket.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepo) CountByColumn(ctx context.Context, boardID int64) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT column_name, COUNT(*)
		FROM tickets
		WHERE board_id = $1
		GROUP BY column_name
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var column string
		var count int
		if err := rows.Scan(&column, &count); err != nil {
			return nil, fmt.Errorf("failed to scan ticket count: %w", err)
		}
		counts[column] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket counts: %w", err)
	}
	return counts, nil
}
