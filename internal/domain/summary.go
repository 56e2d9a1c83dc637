package domain

import "time"

// BoardSummary is the read model behind board overview screens. It is
// expensive enough to compute that callers cache it per board.
type BoardSummary struct {
	BoardID      int64          `json:"board_id"`
	Name         string         `json:"name"`
	TicketCounts map[string]int `json:"ticket_counts"`
	TotalTickets int            `json:"total_tickets"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// BoardStatistics aggregates ticket flow for one board. Average dwell times
// are derived from move history: a ticket's stay in a column is the gap
// between the move that brought it there and the move that took it away, so
// unfinished stays do not count.
type BoardStatistics struct {
	BoardID            int64              `json:"board_id"`
	TotalTickets       int                `json:"total_tickets"`
	PerColumn          map[string]int     `json:"per_column"`
	TotalMoves         int                `json:"total_moves"`
	DoneTickets        int                `json:"done_tickets"`
	AvgSecondsInColumn map[string]float64 `json:"avg_seconds_in_column"`
}
