// Package postgres provides a PostgreSQL-backed [audit.Store].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Record(ctx, run)
//	runs, _ := store.ListByMap(ctx, "maps/c1a0.ent", 10)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUpgradeRuns = `
CREATE TABLE IF NOT EXISTS upgrade_runs (
    id           UUID         PRIMARY KEY,
    map          TEXT         NOT NULL,
    from_version TEXT         NOT NULL DEFAULT '',
    to_version   TEXT         NOT NULL DEFAULT '',
    applied      TEXT[]       NOT NULL DEFAULT '{}',
    changes      JSONB        NOT NULL DEFAULT '[]',
    dry_run      BOOLEAN      NOT NULL DEFAULT false,
    error        TEXT         NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_ns  BIGINT       NOT NULL DEFAULT 0
);

ALTER TABLE upgrade_runs ADD COLUMN IF NOT EXISTS trace_id TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_upgrade_runs_map_started
    ON upgrade_runs (map, started_at DESC);
`

// Migrate creates or ensures the audit tables exist. It is idempotent and
// safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlUpgradeRuns); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
