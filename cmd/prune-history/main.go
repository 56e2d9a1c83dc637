// Command prune-history deletes ticket move records older than a retention
// window. Move history grows without bound on busy boards; statistics only
// need recent history, so operators run this periodically (cron or manual).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultRetention = 90 * 24 * time.Hour

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		olderThan   = flag.Duration("older-than", defaultRetention, "Delete move records older than this")
		batchSize   = flag.Int("batch", 500, "Rows deleted per statement")
		dryRun      = flag.Bool("dry-run", false, "Dry run mode (don't delete anything)")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Postgres URL required (--database or DATABASE_URL env)")
	}
	if *olderThan <= 0 {
		log.Fatal("--older-than must be positive")
	}
	if *batchSize < 1 {
		log.Fatal("--batch must be at least 1")
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	// Connect to Postgres
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	slog.Info("Connected to database", "url", sanitizeURL(*databaseURL))

	cutoff := time.Now().Add(-*olderThan)
	if err := pruneMoves(ctx, pool, cutoff, *batchSize, *dryRun); err != nil {
		log.Fatalf("Prune failed: %v", err)
	}

	slog.Info("Prune complete")
}

// pruneMoves deletes ticket move records older than cutoff. Deletes run in
// batches so a large backlog never holds one long transaction.
func pruneMoves(ctx context.Context, pool *pgxpool.Pool, cutoff time.Time, batchSize int, dryRun bool) error {
	start := time.Now()

	slog.Info("Starting prune", "cutoff", cutoff.Format(time.RFC3339), "dry_run", dryRun)

	var candidates int64
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM ticket_moves WHERE moved_at < $1", cutoff).Scan(&candidates); err != nil {
		return fmt.Errorf("failed to count prunable moves: %w", err)
	}

	if dryRun {
		slog.Info("Dry run, nothing deleted", "candidates", candidates)
		return nil
	}

	var deleted int64
	var batches int
	for {
		tag, err := pool.Exec(ctx,
			"DELETE FROM ticket_moves WHERE id IN (SELECT id FROM ticket_moves WHERE moved_at < $1 ORDER BY id LIMIT $2)",
			cutoff, batchSize)
		if err != nil {
			return fmt.Errorf("delete batch failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			break
		}
		deleted += tag.RowsAffected()
		batches++
		slog.Debug("Deleted batch", "batch", batches, "rows", tag.RowsAffected())
	}

	duration := time.Since(start)
	slog.Info("Prune summary",
		"candidates", candidates,
		"deleted", deleted,
		"batches", batches,
		"duration_ms", duration.Milliseconds())

	// Concurrent writes can land between the count and the deletes.
	if deleted != candidates {
		slog.Warn("Deleted count differs from candidate count", "candidates", candidates, "deleted", deleted)
	}

	return nil
}

func sanitizeURL(url string) string {
	// Hide password in the URL for logging
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			credParts := strings.Split(parts[0], ":")
			if len(credParts) >= 2 {
				return credParts[0] + ":***@" + parts[1]
			}
		}
	}
	return url
}
