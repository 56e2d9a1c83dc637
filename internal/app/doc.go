// Package app provides the application service layer.
//
// Orchestrates use cases: board, ticket, and comment CRUD, ticket moves with
// history, board summaries and statistics. Sits between HTTP handlers and
// domain repositories, and is the only layer that publishes realtime events.
// Depends on domain interfaces, not concrete implementations.
package app
