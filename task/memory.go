package task

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[int64][]SessionSummary
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[int64][]SessionSummary)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, taskID int64) ([]SessionSummary, error) {
	if err := validateID(taskID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SessionSummary(nil), s.tasks[taskID]...), nil
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, taskID int64, summary SessionSummary) error {
	if err := validateID(taskID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := append(s.tasks[taskID], summary)
	if over := len(sessions) - MaxEntries; over > 0 {
		sessions = append([]SessionSummary(nil), sessions[over:]...)
	}
	s.tasks[taskID] = sessions
	return nil
}
