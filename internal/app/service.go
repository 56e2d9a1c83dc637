package app

import (
	"fmt"
	"log/slog"

	"github.com/EvanSchalton/agent-kanban-sub001/internal/cache"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/domain"
	"github.com/EvanSchalton/agent-kanban-sub001/internal/realtime"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Publisher is the slice of the realtime layer the service uses. Deliveries
// are best effort: a mutation never fails because a broadcast did.
type Publisher interface {
	BroadcastAll(env realtime.Envelope, exclude map[string]struct{}) int
	BroadcastToRoom(room realtime.Room, env realtime.Envelope) int
	BroadcastDragEvent(room realtime.Room, event string, payload map[string]any) int
}

// Service orchestrates the use cases. It is the only layer that touches
// more than one repository per call and the only layer that publishes
// realtime events.
type Service struct {
	boards    domain.BoardRepository
	tickets   domain.TicketRepository
	comments  domain.CommentRepository
	history   domain.HistoryRepository
	publisher Publisher
	summaries cache.Summaries
	clock     clockwork.Clock

	summaryGroup singleflight.Group
}

// NewService creates the application layer service.
func NewService(
	boards domain.BoardRepository,
	tickets domain.TicketRepository,
	comments domain.CommentRepository,
	history domain.HistoryRepository,
	publisher Publisher,
	summaries cache.Summaries,
	clock clockwork.Clock,
) *Service {
	return &Service{
		boards:    boards,
		tickets:   tickets,
		comments:  comments,
		history:   history,
		publisher: publisher,
		summaries: summaries,
		clock:     clock,
	}
}

// ValidationError rejects bad input on a use case. Handlers map it to a
// 400 response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// publishBoardEvent fans a board lifecycle envelope out to every registered
// connection. Board room members are registered connections too, so a single
// BroadcastAll keeps delivery exactly-once for them.
func (s *Service) publishBoardEvent(event string, data map[string]any) {
	delivered := s.publisher.BroadcastAll(realtime.NewEnvelope(event, data), nil)
	slog.Debug("Board event published", "event", event, "delivered", delivered)
}

// publishToBoard fans a ticket or comment envelope out to the board room and
// to the firehose room, so clients subscribed to everything see the event
// without joining each board.
func (s *Service) publishToBoard(boardID int64, event string, data map[string]any) {
	env := realtime.NewEnvelope(event, data)
	delivered := s.publisher.BroadcastToRoom(realtime.BoardRoom(boardID), env)
	delivered += s.publisher.BroadcastToRoom(realtime.RoomAll, env)
	slog.Debug("Board room event published", "event", event, "board_id", boardID, "delivered", delivered)
}
