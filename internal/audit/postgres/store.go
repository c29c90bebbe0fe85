package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/mapupgrade/internal/audit"
	"github.com/MrWong99/mapupgrade/internal/diagnostics"
)

// Compile-time interface check.
var _ audit.Store = (*Store)(nil)

// Store is a PostgreSQL-backed [audit.Store] over a single [pgxpool.Pool].
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Record implements [audit.Store]. An existing run with the same id is
// replaced.
func (s *Store) Record(ctx context.Context, run audit.Run) error {
	changes := run.Changes
	if changes == nil {
		changes = []diagnostics.Change{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("audit store: marshal changes: %w", err)
	}
	applied := run.Applied
	if applied == nil {
		applied = []string{}
	}

	const q = `
		INSERT INTO upgrade_runs (id, map, from_version, to_version, applied, changes, dry_run, error, trace_id, started_at, duration_ns)
		VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
		    map          = EXCLUDED.map,
		    from_version = EXCLUDED.from_version,
		    to_version   = EXCLUDED.to_version,
		    applied      = EXCLUDED.applied,
		    changes      = EXCLUDED.changes,
		    dry_run      = EXCLUDED.dry_run,
		    error        = EXCLUDED.error,
		    trace_id     = EXCLUDED.trace_id,
		    started_at   = EXCLUDED.started_at,
		    duration_ns  = EXCLUDED.duration_ns`

	_, err = s.pool.Exec(ctx, q,
		run.ID.String(),
		run.Map,
		run.From,
		run.To,
		applied,
		string(changesJSON),
		run.DryRun,
		run.Error,
		run.TraceID,
		run.StartedAt,
		run.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("audit store: record run: %w", err)
	}
	return nil
}

const selectRuns = `
		SELECT id::text, map, from_version, to_version, applied, changes, dry_run, error, trace_id, started_at, duration_ns
		FROM   upgrade_runs`

// Get implements [audit.Store].
func (s *Store) Get(ctx context.Context, id uuid.UUID) (audit.Run, error) {
	rows, err := s.pool.Query(ctx, selectRuns+` WHERE id = $1::uuid`, id.String())
	if err != nil {
		return audit.Run{}, fmt.Errorf("audit store: get run: %w", err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return audit.Run{}, fmt.Errorf("audit store: get run: %w", err)
	}
	if len(runs) == 0 {
		return audit.Run{}, fmt.Errorf("%w: %s", audit.ErrNotFound, id)
	}
	return runs[0], nil
}

// ListByMap implements [audit.Store].
func (s *Store) ListByMap(ctx context.Context, mapPath string, limit int) ([]audit.Run, error) {
	q := selectRuns + ` WHERE map = $1 ORDER BY started_at DESC`
	args := []any{mapPath}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit store: list runs: %w", err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("audit store: list runs: %w", err)
	}
	return runs, nil
}

func collectRuns(rows pgx.Rows) ([]audit.Run, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Run, error) {
		var (
			r           audit.Run
			id          string
			changesJSON []byte
			durationNS  int64
		)
		if err := row.Scan(
			&id, &r.Map, &r.From, &r.To, &r.Applied, &changesJSON,
			&r.DryRun, &r.Error, &r.TraceID, &r.StartedAt, &durationNS,
		); err != nil {
			return r, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return r, fmt.Errorf("parse run id %q: %w", id, err)
		}
		r.ID = parsed
		r.Duration = time.Duration(durationNS)
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &r.Changes); err != nil {
				return r, fmt.Errorf("unmarshal changes: %w", err)
			}
		}
		return r, nil
	})
}
