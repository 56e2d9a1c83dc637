// Package store is the in-memory persistence backend, used when no
// DATABASE_URL is configured and by unit tests above the repository layer.
// It implements the same repository contracts as the Postgres backend,
// including cascade deletes, so the layers above cannot tell them apart.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	boardsByID   map[int64]domain.Board
	ticketsByID  map[int64]domain.Ticket
	commentsByID map[int64]domain.Comment
	moves        []domain.ColumnMove

	boardSeq   int64
	ticketSeq  int64
	commentSeq int64
	moveSeq    int64
}

func New() *Store {
	return &Store{
		boardsByID:   make(map[int64]domain.Board),
		ticketsByID:  make(map[int64]domain.Ticket),
		commentsByID: make(map[int64]domain.Comment),
	}
}

// The facet accessors expose the store as the individual repository
// interfaces. All facets share one lock, which keeps cascade deletes atomic.

func (s *Store) Boards() domain.BoardRepository     { return &boardRepo{s: s} }
func (s *Store) Tickets() domain.TicketRepository   { return &ticketRepo{s: s} }
func (s *Store) Comments() domain.CommentRepository { return &commentRepo{s: s} }
func (s *Store) History() domain.HistoryRepository  { return &historyRepo{s: s} }

type boardRepo struct {
	s *Store
}

func (r *boardRepo) Create(_ context.Context, board *domain.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.boardSeq++
	board.ID = r.s.boardSeq
	r.s.boardsByID[board.ID] = cloneBoard(*board)
	return nil
}

func (r *boardRepo) GetByID(_ context.Context, id int64) (*domain.Board, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	board, ok := r.s.boardsByID[id]
	if !ok {
		return nil, domain.ErrBoardNotFound
	}
	board = cloneBoard(board)
	return &board, nil
}

func (r *boardRepo) List(_ context.Context) ([]*domain.Board, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	boards := make([]*domain.Board, 0, len(r.s.boardsByID))
	for _, board := range r.s.boardsByID {
		b := cloneBoard(board)
		boards = append(boards, &b)
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].ID < boards[j].ID })
	return boards, nil
}

func (r *boardRepo) Update(_ context.Context, board *domain.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boardsByID[board.ID]; !ok {
		return domain.ErrBoardNotFound
	}
	r.s.boardsByID[board.ID] = cloneBoard(*board)
	return nil
}

func (r *boardRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boardsByID[id]; !ok {
		return domain.ErrBoardNotFound
	}
	delete(r.s.boardsByID, id)

	for ticketID, ticket := range r.s.ticketsByID {
		if ticket.BoardID == id {
			delete(r.s.ticketsByID, ticketID)
			r.s.deleteCommentsOfTicketLocked(ticketID)
		}
	}
	r.s.moves = slices.DeleteFunc(r.s.moves, func(m domain.ColumnMove) bool { return m.BoardID == id })
	return nil
}

type ticketRepo struct {
	s *Store
}

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boardsByID[ticket.BoardID]; !ok {
		return domain.ErrBoardNotFound
	}
	r.s.ticketSeq++
	ticket.ID = r.s.ticketSeq
	r.s.ticketsByID[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ticket, ok := r.s.ticketsByID[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return &ticket, nil
}

func (r *ticketRepo) ListByBoard(_ context.Context, boardID int64, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var tickets []*domain.Ticket
	for _, ticket := range r.s.ticketsByID {
		if ticket.BoardID != boardID {
			continue
		}
		if filter.Column != "" && ticket.Column != filter.Column {
			continue
		}
		if filter.Assignee != "" && ticket.Assignee != filter.Assignee {
			continue
		}
		t := ticket
		tickets = append(tickets, &t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.ticketsByID[ticket.ID]; !ok {
		return domain.ErrTicketNotFound
	}
	r.s.ticketsByID[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.ticketsByID[id]; !ok {
		return domain.ErrTicketNotFound
	}
	delete(r.s.ticketsByID, id)
	r.s.deleteCommentsOfTicketLocked(id)
	r.s.moves = slices.DeleteFunc(r.s.moves, func(m domain.ColumnMove) bool { return m.TicketID == id })
	return nil
}

func (r *ticketRepo) CountByColumn(_ context.Context, boardID int64) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for _, ticket := range r.s.ticketsByID {
		if ticket.BoardID == boardID {
			counts[ticket.Column]++
		}
	}
	return counts, nil
}

type commentRepo struct {
	s *Store
}

func (r *commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.ticketsByID[comment.TicketID]; !ok {
		return domain.ErrTicketNotFound
	}
	r.s.commentSeq++
	comment.ID = r.s.commentSeq
	r.s.commentsByID[comment.ID] = *comment
	return nil
}

func (r *commentRepo) GetByID(_ context.Context, id int64) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	comment, ok := r.s.commentsByID[id]
	if !ok {
		return nil, domain.ErrCommentNotFound
	}
	return &comment, nil
}

func (r *commentRepo) ListByTicket(_ context.Context, ticketID int64) ([]*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var comments []*domain.Comment
	for _, comment := range r.s.commentsByID {
		if comment.TicketID != ticketID {
			continue
		}
		c := comment
		comments = append(comments, &c)
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments, nil
}

func (r *commentRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.commentsByID[id]; !ok {
		return domain.ErrCommentNotFound
	}
	delete(r.s.commentsByID, id)
	return nil
}

type historyRepo struct {
	s *Store
}

func (r *historyRepo) Record(_ context.Context, move *domain.ColumnMove) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.ticketsByID[move.TicketID]; !ok {
		return domain.ErrTicketNotFound
	}
	r.s.moveSeq++
	move.ID = r.s.moveSeq
	r.s.moves = append(r.s.moves, *move)
	return nil
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID int64) ([]*domain.ColumnMove, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var moves []*domain.ColumnMove
	for _, move := range r.s.moves {
		if move.TicketID != ticketID {
			continue
		}
		m := move
		moves = append(moves, &m)
	}
	return moves, nil
}

func (r *historyRepo) ListByBoard(_ context.Context, boardID int64) ([]*domain.ColumnMove, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var moves []*domain.ColumnMove
	for _, move := range r.s.moves {
		if move.BoardID != boardID {
			continue
		}
		m := move
		moves = append(moves, &m)
	}
	return moves, nil
}

func (r *historyRepo) CountByBoard(_ context.Context, boardID int64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, move := range r.s.moves {
		if move.BoardID == boardID {
			count++
		}
	}
	return count, nil
}

func (s *Store) deleteCommentsOfTicketLocked(ticketID int64) {
	for id, comment := range s.commentsByID {
		if comment.TicketID == ticketID {
			delete(s.commentsByID, id)
		}
	}
}

// cloneBoard deep-copies the columns slice so callers can mutate their copy.
func cloneBoard(b domain.Board) domain.Board {
	b.Columns = slices.Clone(b.Columns)
	return b
}
