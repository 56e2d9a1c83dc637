package domain

import "errors"

var (
	ErrBoardNotFound   = errors.New("board not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrUnknownColumn   = errors.New("column not part of board")
)
