package audit_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/mapupgrade/internal/audit"
	"github.com/MrWong99/mapupgrade/internal/resilience"
)

var errUnreachable = errors.New("connection refused")

// flakyStore wraps a MemStore and fails every call while down is set.
type flakyStore struct {
	audit.MemStore
	down  atomic.Bool
	calls atomic.Int32
}

func (s *flakyStore) Record(ctx context.Context, run audit.Run) error {
	s.calls.Add(1)
	if s.down.Load() {
		return errUnreachable
	}
	return s.MemStore.Record(ctx, run)
}

func (s *flakyStore) Get(ctx context.Context, id uuid.UUID) (audit.Run, error) {
	s.calls.Add(1)
	if s.down.Load() {
		return audit.Run{}, errUnreachable
	}
	return s.MemStore.Get(ctx, id)
}

func (s *flakyStore) ListByMap(ctx context.Context, mapPath string, limit int) ([]audit.Run, error) {
	s.calls.Add(1)
	if s.down.Load() {
		return nil, errUnreachable
	}
	return s.MemStore.ListByMap(ctx, mapPath, limit)
}

func TestFailoverStore_HealthyPrimary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := &flakyStore{}
	fallback := audit.NewMemStore()
	s := audit.NewFailoverStore(primary, fallback, nil)

	run := audit.NewRun("maps/c1a0.ent", time.Now())
	if err := s.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if primary.Len() != 1 || fallback.Len() != 0 {
		t.Fatalf("primary=%d fallback=%d, want 1/0", primary.Len(), fallback.Len())
	}
	got, err := s.Get(ctx, run.ID)
	if err != nil || got.ID != run.ID {
		t.Fatalf("Get: %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
}

func TestFailoverStore_PrimaryDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := &flakyStore{}
	primary.down.Store(true)
	fallback := audit.NewMemStore()
	breaker := resilience.New(resilience.Config{Name: "audit", MaxFailures: 2, CoolDown: time.Hour})
	s := audit.NewFailoverStore(primary, fallback, breaker)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 4 {
		run := audit.NewRun("maps/c1a0.ent", start.Add(time.Duration(i)*time.Minute))
		if err := s.Record(ctx, run); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	if fallback.Len() != 4 {
		t.Fatalf("fallback holds %d runs, want 4", fallback.Len())
	}
	if breaker.State() != resilience.StateOpen {
		t.Fatalf("breaker = %s, want open", breaker.State())
	}
	if n := primary.calls.Load(); n != 2 {
		t.Fatalf("primary called %d times, open breaker must stop calls after 2", n)
	}

	runs, err := s.ListByMap(ctx, "maps/c1a0.ent", 3)
	if err != nil {
		t.Fatalf("ListByMap: %v", err)
	}
	if len(runs) != 3 || !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Fatalf("expected 3 runs newest first, got %+v", runs)
	}
	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("unknown id with open breaker: %v", err)
	}
}

func TestFailoverStore_ListMergesBothStores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := &flakyStore{}
	fallback := audit.NewMemStore()
	s := audit.NewFailoverStore(primary, fallback, nil)

	older := audit.NewRun("maps/a.ent", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := audit.NewRun("maps/a.ent", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err := primary.Record(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := fallback.Record(ctx, newer); err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListByMap(ctx, "maps/a.ent", 0)
	if err != nil {
		t.Fatalf("ListByMap: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Fatalf("unexpected merge order: %+v", runs)
	}
}
