package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/mapupgrade/internal/audit"
	"github.com/MrWong99/mapupgrade/internal/audit/postgres"
	"github.com/MrWong99/mapupgrade/internal/diagnostics"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if MAPUPGRADE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MAPUPGRADE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MAPUPGRADE_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS upgrade_runs CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := audit.NewRun("maps/c1a0.ent", time.Now().UTC().Truncate(time.Microsecond))
	run.From, run.To = "0.0.0", "1.1.0"
	run.Applied = []string{"1.0.0", "1.1.0"}
	run.DryRun = true
	run.TraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	run.Duration = 1500 * time.Microsecond
	run.Changes = []diagnostics.Change{
		{Category: "keyvalue_changed", Index: 0, ClassName: "worldspawn", Key: "MaxRange", Previous: "2048", Value: "4096"},
	}

	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != run.ID || got.Map != run.Map || got.To != "1.1.0" || !got.DryRun || got.TraceID != run.TraceID {
		t.Errorf("Get: got %+v", got)
	}
	if len(got.Applied) != 2 || got.Applied[0] != "1.0.0" {
		t.Errorf("applied: %v", got.Applied)
	}
	if len(got.Changes) != 1 || got.Changes[0].Previous != "2048" {
		t.Errorf("changes: %+v", got.Changes)
	}
	if got.Duration != run.Duration || !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("timing: got %v at %v, want %v at %v", got.Duration, got.StartedAt, run.Duration, run.StartedAt)
	}

	run.Error = "boom"
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record (replace): %v", err)
	}
	got, _ = store.Get(ctx, run.ID)
	if got.Error != "boom" {
		t.Errorf("replace: error = %q", got.Error)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), uuid.New()); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByMap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	var newest uuid.UUID
	for i := range 3 {
		run := audit.NewRun("maps/c2a5.ent", base.Add(time.Duration(i)*time.Second))
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record: %v", err)
		}
		newest = run.ID
	}
	if err := store.Record(ctx, audit.NewRun("maps/c2a6.ent", base)); err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListByMap(ctx, "maps/c2a5.ent", 2)
	if err != nil {
		t.Fatalf("ListByMap: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newest {
		t.Errorf("ListByMap(limit 2): got %d runs, first %v", len(runs), runs)
	}
	all, err := store.ListByMap(ctx, "maps/c2a5.ent", 0)
	if err != nil {
		t.Fatalf("ListByMap: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListByMap(no limit): got %d runs", len(all))
	}
}
