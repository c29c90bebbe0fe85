// Package audit records upgrade runs: which map was upgraded from which
// version to which, what upgrades were applied, and the entity changes the
// run made. Dry runs are recorded too, which makes the store the place to
// review what an upgrade would do before it is written to disk.
//
// [MemStore] keeps runs for the lifetime of the process; the postgres
// sub-package persists them.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/mapupgrade/internal/diagnostics"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// ErrNotFound is returned by [Store.Get] for unknown run ids.
var ErrNotFound = errors.New("audit: run not found")

// Run is the record of one upgrade of one map file.
type Run struct {
	ID uuid.UUID

	// Map is the path of the upgraded map file.
	Map string

	// From and To are the effective version range. Empty when the run failed
	// before planning.
	From, To string

	// Applied lists the versions of the upgrades that ran completely.
	Applied []string

	// Changes holds the entity changes observed during the run.
	Changes []diagnostics.Change

	// DryRun is true when the result was not written back.
	DryRun bool

	// Error is the error message of a failed run.
	Error string

	// TraceID links the run to its OpenTelemetry trace. Empty when the run
	// was not traced.
	TraceID string

	StartedAt time.Time
	Duration  time.Duration
}

// NewRun returns a Run for mapPath with a fresh random id.
func NewRun(mapPath string, startedAt time.Time) Run {
	return Run{ID: uuid.New(), Map: mapPath, StartedAt: startedAt}
}

// SetResult copies the outcome of an engine run into r.
func (r *Run) SetResult(res upgrade.Result, err error) {
	if !res.From.IsZero() || !res.To.IsZero() {
		r.From = res.From.String()
		r.To = res.To.String()
	}
	r.Applied = make([]string, len(res.Applied))
	for i, v := range res.Applied {
		r.Applied[i] = v.String()
	}
	if err != nil {
		r.Error = err.Error()
	}
}

// Store persists runs. Implementations must be safe for concurrent use.
type Store interface {
	// Record stores run. Recording the same id twice replaces the record.
	Record(ctx context.Context, run Run) error

	// Get returns the run with the given id or an error wrapping
	// [ErrNotFound].
	Get(ctx context.Context, id uuid.UUID) (Run, error)

	// ListByMap returns the runs of mapPath, newest first. A limit <= 0
	// returns every run.
	ListByMap(ctx context.Context, mapPath string, limit int) ([]Run, error)
}
