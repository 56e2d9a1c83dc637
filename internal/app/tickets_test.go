package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/cache"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/store"
)

// failingHistory drops every recorded move with an error.
type failingHistory struct {
	domain.HistoryRepository
}

func (f *failingHistory) Record(context.Context, *domain.ColumnMove) error {
	return fmt.Errorf("history unavailable")
}

func TestCreateTicket_Defaults(t *testing.T) {
	svc, publisher, clock := newTestService(t)
	board := mustCreateBoard(t, svc, "b")

	ticket, err := svc.CreateTicket(context.Background(), board.ID, CreateTicketInput{Title: "  fix login  "})
	require.NoError(t, err)

	assert.Equal(t, "fix login", ticket.Title)
	assert.Equal(t, "Not Started", ticket.Column)
	assert.Equal(t, domain.PriorityMedium, ticket.Priority)
	assert.Equal(t, clock.Now().UTC(), ticket.CreatedAt)
	assert.NotZero(t, ticket.ID)

	// Ticket events go to the board room and the firehose, never BroadcastAll.
	room := realtime.BoardRoom(board.ID)
	assert.Equal(t, []string{domain.EventTicketCreated}, publisher.roomEvents(room))
	assert.Equal(t, []string{domain.EventTicketCreated}, publisher.roomEvents(realtime.RoomAll))
	assert.Equal(t, []string{domain.EventBoardCreated}, publisher.allEvents())
}

func TestCreateTicket_ExplicitFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	board := mustCreateBoard(t, svc, "b")

	ticket, err := svc.CreateTicket(context.Background(), board.ID, CreateTicketInput{
		Title:              "ship it",
		Description:        "long form",
		AcceptanceCriteria: "works",
		Column:             "In Progress",
		Priority:           domain.PriorityCritical,
		Assignee:           "sam",
	})
	require.NoError(t, err)
	assert.Equal(t, "In Progress", ticket.Column)
	assert.Equal(t, domain.PriorityCritical, ticket.Priority)
	assert.Equal(t, "works", ticket.AcceptanceCriteria)
	assert.Equal(t, "sam", ticket.Assignee)
}

func TestCreateTicket_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	board := mustCreateBoard(t, svc, "b")

	_, err := svc.CreateTicket(context.Background(), board.ID, CreateTicketInput{Title: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	_, err = svc.CreateTicket(context.Background(), board.ID, CreateTicketInput{Title: "t", Priority: "urgent"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "priority", verr.Field)

	_, err = svc.CreateTicket(context.Background(), board.ID, CreateTicketInput{Title: "t", Column: "Backlog"})
	require.ErrorIs(t, err, domain.ErrUnknownColumn)

	_, err = svc.CreateTicket(context.Background(), 42, CreateTicketInput{Title: "t"})
	require.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestListTickets(t *testing.T) {
	svc, _, _ := newTestService(t)
	board := mustCreateBoard(t, svc, "b")
	mustCreateTicket(t, svc, board.ID, "one")

	second, err := svc.CreateTicket(context.Background(), board.ID, CreateTicketInput{Title: "two", Assignee: "sam"})
	require.NoError(t, err)

	all, err := svc.ListTickets(context.Background(), board.ID, domain.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListTickets(context.Background(), board.ID, domain.TicketFilter{Assignee: "sam"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)

	_, err = svc.ListTickets(context.Background(), 42, domain.TicketFilter{})
	require.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestUpdateTicket(t *testing.T) {
	svc, publisher, clock := newTestService(t)
	board := mustCreateBoard(t, svc, "b")
	ticket := mustCreateTicket(t, svc, board.ID, "old title")

	clock.Advance(time.Second)
	title := "new title"
	priority := domain.PriorityHigh
	updated, err := svc.UpdateTicket(context.Background(), ticket.ID, UpdateTicketInput{Title: &title, Priority: &priority})
	require.NoError(t, err)

	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)
	assert.Equal(t, ticket.Column, updated.Column)
	assert.True(t, updated.UpdatedAt.After(ticket.UpdatedAt))

	events := publisher.roomEvents(realtime.BoardRoom(board.ID))
	assert.Equal(t, domain.EventTicketUpdated, events[len(events)-1])
}

func TestUpdateTicket_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	board := mustCreateBoard(t, svc, "b")
	ticket := mustCreateTicket(t, svc, board.ID, "t")

	blank := "  "
	_, err := svc.UpdateTicket(context.Background(), ticket.ID, UpdateTicketInput{Title: &blank})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	bad := "urgent"
	_, err = svc.UpdateTicket(context.Background(), ticket.ID, UpdateTicketInput{Priority: &bad})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "priority", verr.Field)

	_, err = svc.UpdateTicket(context.Background(), 42, UpdateTicketInput{})
	require.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestDeleteTicket(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	board := mustCreateBoard(t, svc, "b")
	ticket := mustCreateTicket(t, svc, board.ID, "t")

	_, err := svc.AddComment(context.Background(), ticket.ID, "sam", "note")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTicket(context.Background(), ticket.ID))

	_, err = svc.GetTicket(context.Background(), ticket.ID)
	require.ErrorIs(t, err, domain.ErrTicketNotFound)

	events := publisher.roomEvents(realtime.BoardRoom(board.ID))
	assert.Equal(t, domain.EventTicketDeleted, events[len(events)-1])
}

func TestDeleteTicket_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	require.ErrorIs(t, svc.DeleteTicket(context.Background(), 42), domain.ErrTicketNotFound)
}

// --- Move tests ---

func TestMoveTicket(t *testing.T) {
	svc, publisher, clock := newTestService(t)
	board := mustCreateBoard(t, svc, "b")
	ticket := mustCreateTicket(t, svc, board.ID, "t")

	clock.Advance(time.Second)
	moved, err := svc.MoveTicket(context.Background(), ticket.ID, "In Progress")
	require.NoError(t, err)

	assert.Equal(t, "In Progress", moved.Column)
	assert.True(t, moved.UpdatedAt.After(ticket.UpdatedAt))

	moves, err := svc.TicketHistory(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, "Not Started", moves[0].FromColumn)
	assert.Equal(t, "In Progress", moves[0].ToColumn)
	assert.Equal(t, clock.Now().UTC(), moves[0].MovedAt)

	// The move goes out on the drag fast path to the board room, plus the
	// firehose leg.
	require.Len(t, publisher.drags, 1)
	drag := publisher.drags[0]
	assert.Equal(t, realtime.BoardRoom(board.ID), drag.room)
	assert.Equal(t, domain.EventTicketMoved, drag.event)
	assert.Equal(t, "Not Started", drag.data["from_column"])
	assert.Equal(t, "In Progress", drag.data["to_column"])
	assert.Equal(t, ticket.ID, drag.data["id"])

	allRoom := publisher.roomEvents(realtime.RoomAll)
	assert.Equal(t, domain.EventTicketMoved, allRoom[len(allRoom)-1])
}

func TestMoveTicket_SameColumnIsNoOp(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	board := mustCreateBoard(t, svc, "b")
	ticket := mustCreateTicket(t, svc, board.ID, "t")

	moved, err := svc.MoveTicket(context.Background(), ticket.ID, "Not Started")
	require.NoError(t, err)
	assert.Equal(t, ticket.UpdatedAt, moved.UpdatedAt)

	moves, err := svc.TicketHistory(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, moves)
	assert.Empty(t, publisher.drags)
}

func TestMoveTicket_UnknownColumn(t *testing.T) {
	svc, _, _ := newTestService(t)
	board := mustCreateBoard(t, svc, "b")
	ticket := mustCreateTicket(t, svc, board.ID, "t")

	_, err := svc.MoveTicket(context.Background(), ticket.ID, "Backlog")
	require.ErrorIs(t, err, domain.ErrUnknownColumn)
}

func TestMoveTicket_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.MoveTicket(context.Background(), 42, "Done")
	require.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestMoveTicket_SurvivesHistoryFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	publisher := &recordingPublisher{}
	st := store.New()
	svc := NewService(st.Boards(), st.Tickets(), st.Comments(), &failingHistory{HistoryRepository: st.History()}, publisher, cache.NewMemory(clock, time.Minute), clock)

	board, err := svc.CreateBoard(context.Background(), CreateBoardInput{Name: "b"})
	require.NoError(t, err)
	ticket, err := svc.CreateTicket(context.Background(), board.ID, CreateTicketInput{Title: "t"})
	require.NoError(t, err)

	moved, err := svc.MoveTicket(context.Background(), ticket.ID, "Done")
	require.NoError(t, err)
	assert.Equal(t, "Done", moved.Column)
	assert.Len(t, publisher.drags, 1)
}

func TestTicketHistory_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.TicketHistory(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrTicketNotFound)
}
