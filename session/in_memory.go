package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hupe1980/jubilee/core"
)

// ErrEmptyID is returned for blank session identifiers.
var ErrEmptyID = errors.New("session id must not be empty")

// Store loads and saves conversation histories.
type Store interface {
	// Load returns the history of id, or a fresh empty history.
	Load(ctx context.Context, id string) (*core.ChatHistory, error)
	// Save persists the history of id.
	Save(ctx context.Context, id string, history *core.ChatHistory) error
	// Delete forgets a session.
	Delete(ctx context.Context, id string) error
}

// InMemoryStore is a volatile Store keeping histories in a process-local
// map. Load returns the stored history itself, so Save only has to register
// new sessions.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.ChatHistory
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.ChatHistory)}
}

// Load implements Store. Unknown sessions are created lazily.
func (s *InMemoryStore) Load(_ context.Context, id string) (*core.ChatHistory, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	if !ok {
		h = core.NewChatHistory()
		s.sessions[id] = h
	}
	return h, nil
}

// Save implements Store.
func (s *InMemoryStore) Save(_ context.Context, id string, history *core.ChatHistory) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = history
	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// IDs returns the known session ids in sorted order.
func (s *InMemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
