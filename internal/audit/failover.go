package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/MrWong99/mapupgrade/internal/resilience"
)

// Compile-time interface check.
var _ Store = (*FailoverStore)(nil)

// FailoverStore records runs in a primary store guarded by a circuit
// breaker. Runs the primary refuses are kept in a fallback store so an
// unreachable database never loses the audit trail of a batch.
//
// Reads consult both stores and merge the results.
type FailoverStore struct {
	primary  Store
	fallback Store
	breaker  *resilience.Breaker
}

// NewFailoverStore returns a FailoverStore. A nil fallback is replaced with
// a fresh [MemStore]; a nil breaker with one using default settings.
func NewFailoverStore(primary, fallback Store, breaker *resilience.Breaker) *FailoverStore {
	if fallback == nil {
		fallback = NewMemStore()
	}
	if breaker == nil {
		breaker = resilience.New(resilience.Config{Name: "audit"})
	}
	return &FailoverStore{primary: primary, fallback: fallback, breaker: breaker}
}

// Record implements [Store].
func (s *FailoverStore) Record(ctx context.Context, run Run) error {
	err := s.breaker.Do(func() error { return s.primary.Record(ctx, run) })
	if err == nil {
		return nil
	}
	slog.Warn("audit primary unavailable, keeping run in fallback", "run_id", run.ID, "map", run.Map, "err", err)
	if ferr := s.fallback.Record(ctx, run); ferr != nil {
		return fmt.Errorf("audit: record run %s: %w", run.ID, errors.Join(err, ferr))
	}
	return nil
}

// Get implements [Store]. The fallback is checked first because it only
// holds runs the primary never received.
func (s *FailoverStore) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	run, err := s.fallback.Get(ctx, id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Run{}, err
	}
	err = s.breaker.Do(func() error {
		var perr error
		run, perr = s.primary.Get(ctx, id)
		if errors.Is(perr, ErrNotFound) {
			// A missing row is an answer, not an outage.
			return nil
		}
		return perr
	})
	switch {
	case errors.Is(err, resilience.ErrOpen):
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return Run{}, err
	case run.ID != id:
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, nil
}

// ListByMap implements [Store]. While the primary is unavailable only
// fallback runs are returned.
func (s *FailoverStore) ListByMap(ctx context.Context, mapPath string, limit int) ([]Run, error) {
	out, err := s.fallback.ListByMap(ctx, mapPath, limit)
	if err != nil {
		return nil, err
	}
	var primary []Run
	err = s.breaker.Do(func() error {
		var perr error
		primary, perr = s.primary.ListByMap(ctx, mapPath, limit)
		return perr
	})
	if err != nil {
		slog.Warn("audit primary unavailable, listing fallback runs only", "map", mapPath, "err", err)
	}
	out = append(out, primary...)
	slices.SortStableFunc(out, func(a, b Run) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
