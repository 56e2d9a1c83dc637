package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateTicket(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/boards/%d/tickets", board.ID), map[string]any{
		"title":       "Fix login",
		"description": "users cannot log in",
		"priority":    "high",
		"assignee":    "alice",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	assert.NotZero(t, ticket.ID)
	assert.Equal(t, board.ID, ticket.BoardID)
	assert.Equal(t, "Fix login", ticket.Title)
	assert.Equal(t, "todo", ticket.Column, "defaults to the first column")
	assert.Equal(t, "high", ticket.Priority)
	assert.Equal(t, "alice", ticket.Assignee)
}

func TestHandleCreateTicket_DefaultPriority(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")

	ticket := createTestTicket(t, srv, board.ID, "plain ticket")

	assert.Equal(t, "medium", ticket.Priority)
}

func TestHandleCreateTicket_BoardNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/boards/99/tickets", map[string]any{"title": "orphan"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "board not found")
}

func TestHandleCreateTicket_UnknownColumn(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/boards/%d/tickets", board.ID), map[string]any{
		"title":  "misplaced",
		"column": "archived",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "column does not exist on board")
}

func TestHandleCreateTicket_BadPriority(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/boards/%d/tickets", board.ID), map[string]any{
		"title":    "ticket",
		"priority": "urgent",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "priority")
}

func TestHandleCreateTicket_EmptyTitle(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/boards/%d/tickets", board.ID), map[string]any{
		"title": "  ",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title")
}

func TestHandleListTickets(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	createTestTicket(t, srv, board.ID, "one")
	createTestTicket(t, srv, board.ID, "two")
	third := createTestTicket(t, srv, board.ID, "three")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", third.ID), map[string]any{"column": "done"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/boards/%d/tickets", board.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tickets []ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	assert.Len(t, tickets, 3)
}

func TestHandleListTickets_ColumnFilter(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	createTestTicket(t, srv, board.ID, "one")
	moved := createTestTicket(t, srv, board.ID, "two")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", moved.ID), map[string]any{"column": "done"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/boards/%d/tickets?column=done", board.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tickets []ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, "two", tickets[0].Title)
}

func TestHandleListTickets_AssigneeFilter(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/boards/%d/tickets", board.ID), map[string]any{
		"title":    "hers",
		"assignee": "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	createTestTicket(t, srv, board.ID, "nobody's")

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/boards/%d/tickets?assignee=alice", board.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tickets []ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, "hers", tickets[0].Title)
}

func TestHandleListTickets_BoardNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/boards/3/tickets", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetTicket(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "lookup me")

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/tickets/%d", created.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	assert.Equal(t, created.ID, ticket.ID)
	assert.Equal(t, "lookup me", ticket.Title)
}

func TestHandleGetTicket_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/tickets/404", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ticket not found")
}

func TestHandleGetTicket_BadID(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/tickets/zero", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateTicket(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "old title")

	rec := doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/tickets/%d", created.ID), map[string]any{
		"title":    "new title",
		"priority": "critical",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	assert.Equal(t, "new title", ticket.Title)
	assert.Equal(t, "critical", ticket.Priority)
	// Untouched fields survive a partial update.
	assert.Equal(t, created.Column, ticket.Column)
	assert.Equal(t, created.Assignee, ticket.Assignee)
}

func TestHandleUpdateTicket_BadPriority(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "ticket")

	rec := doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/tickets/%d", created.ID), map[string]any{
		"priority": "asap",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateTicket_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/tickets/9", map[string]any{"title": "x"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteTicket(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "doomed")

	rec := doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/tickets/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/tickets/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteTicket_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodDelete, "/api/tickets/8", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMoveTicket(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "mover")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", created.ID), map[string]any{
		"column": "in_progress",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	assert.Equal(t, "in_progress", ticket.Column)
}

func TestHandleMoveTicket_SameColumn(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "stayer")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", created.ID), map[string]any{
		"column": "todo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// A no-op move leaves no trace in history.
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/tickets/%d/history", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleMoveTicket_UnknownColumn(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "mover")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", created.ID), map[string]any{
		"column": "limbo",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "column does not exist on board")
}

func TestHandleMoveTicket_EmptyColumn(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "mover")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", created.ID), map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "column must not be empty")
}

func TestHandleMoveTicket_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/tickets/77/move", map[string]any{"column": "done"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTicketHistory(t *testing.T) {
	srv := newTestServer(t)
	board := createTestBoard(t, srv, "sprint")
	created := createTestTicket(t, srv, board.ID, "traveler")

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", created.ID), map[string]any{"column": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/move", created.ID), map[string]any{"column": "done"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/tickets/%d/history", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var moves []columnMoveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &moves))
	require.Len(t, moves, 2)
	assert.Equal(t, "todo", moves[0].FromColumn)
	assert.Equal(t, "in_progress", moves[0].ToColumn)
	assert.Equal(t, "in_progress", moves[1].FromColumn)
	assert.Equal(t, "done", moves[1].ToColumn)
	assert.Equal(t, created.ID, moves[0].TicketID)
	assert.Equal(t, board.ID, moves[0].BoardID)
}

func TestHandleTicketHistory_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/tickets/55/history", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
