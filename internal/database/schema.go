package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS watch_prices (
		id            BIGSERIAL PRIMARY KEY,
		run_id        UUID NOT NULL,
		model_id      TEXT NOT NULL,
		model_name    TEXT NOT NULL,
		retail_price  TEXT NOT NULL,
		market_price  TEXT NOT NULL,
		timestamp     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watch_prices_model ON watch_prices (model_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS watch_specs (
		id          BIGSERIAL PRIMARY KEY,
		run_id      UUID NOT NULL,
		model_id    TEXT NOT NULL,
		model_name  TEXT NOT NULL,
		image_url   TEXT,
		specs       JSONB NOT NULL DEFAULT '{}'::jsonb,
		captured_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scrape_logs (
		id                 UUID PRIMARY KEY,
		start_time         TIMESTAMP NOT NULL,
		end_time           TIMESTAMP NOT NULL,
		duration_seconds   DOUBLE PRECISION NOT NULL,
		total_watches      INTEGER NOT NULL,
		successful_watches INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL CHECK (aggregate_type <> ''),
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL CHECK (event_type <> ''),
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		retry_count    INTEGER NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event (status, next_retry_at)`,
}

// EnsureSchema creates the tables the scraper writes to if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
