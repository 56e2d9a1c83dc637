// Package database provides PostgreSQL connectivity and repositories.
//
// Uses pgx for connection pooling and tern for migrations. Repositories
// implement the domain interfaces: BoardRepository, TicketRepository,
// CommentRepository, HistoryRepository.
package database
