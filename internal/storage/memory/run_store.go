package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// ErrRunNotFound is returned by GetRun for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// RunStore provides an in-memory wigle.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]wigle.RunRecord
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]wigle.RunRecord)}
}

// RecordRun stores run, replacing any earlier record with the same ID.
func (s *RunStore) RecordRun(_ context.Context, run wigle.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (wigle.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return wigle.RunRecord{}, ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns all runs ordered by start time.
func (s *RunStore) ListRuns(_ context.Context) []wigle.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]wigle.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
