package database

import (
	"context"
	"fmt"
)

// schemaStatements bring an existing inventory database up to what the sync
// needs. The items table itself is owned by the inventory application; only
// the remote_* columns and the outbox are added here.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		article TEXT,
		link TEXT,
		dimensions TEXT,
		cost_per_sheet NUMERIC(12,2),
		cost_per_m2 NUMERIC(12,2),
		cost_per_piece NUMERIC(12,2)
	)`,
	`ALTER TABLE items ADD COLUMN IF NOT EXISTS remote_url TEXT`,
	`ALTER TABLE items ADD COLUMN IF NOT EXISTS remote_price NUMERIC(12,2)`,
	`ALTER TABLE items ADD COLUMN IF NOT EXISTS remote_available BOOLEAN`,
	`ALTER TABLE items ADD COLUMN IF NOT EXISTS remote_updated_at TIMESTAMPTZ`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		target_stream TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ,
		next_retry_at TIMESTAMPTZ
	)`,
	`ALTER TABLE outbox_event ADD COLUMN IF NOT EXISTS stream_entry_id TEXT`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending
		ON outbox_event (status, next_retry_at)`,
}

// Migrate applies the schema statements in order. Every statement is
// idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
