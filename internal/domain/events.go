package domain

// Event names carried in the envelope "event" field. Connected clients key
// their UI updates off these values, so they are part of the wire contract.
const (
	EventBoardCreated   = "board_created"
	EventBoardUpdated   = "board_updated"
	EventBoardDeleted   = "board_deleted"
	EventTicketCreated  = "ticket_created"
	EventTicketUpdated  = "ticket_updated"
	EventTicketMoved    = "ticket_moved"
	EventTicketDeleted  = "ticket_deleted"
	EventCommentAdded   = "comment_added"
	EventCommentDeleted = "comment_deleted"
)
