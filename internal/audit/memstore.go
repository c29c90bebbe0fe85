package audit

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. The zero value is ready to use.
type MemStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]Run
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Record implements [Store].
func (s *MemStore) Record(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs == nil {
		s.runs = make(map[uuid.UUID]Run)
	}
	run.Applied = slices.Clone(run.Applied)
	run.Changes = slices.Clone(run.Changes)
	s.runs[run.ID] = run
	return nil
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, id uuid.UUID) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, nil
}

// ListByMap implements [Store].
func (s *MemStore) ListByMap(_ context.Context, mapPath string, limit int) ([]Run, error) {
	s.mu.RLock()
	var out []Run
	for _, run := range s.runs {
		if run.Map == mapPath {
			out = append(out, run)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored runs.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
