package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Forget for unknown ids.
var ErrNotFound = errors.New("memory not found")

// Fact is one stored memory.
type Fact struct {
	ID        string
	Text      string
	Tags      []string
	Source    string
	CreatedAt time.Time
}

// SearchResult is a recalled fact with its relevance in [0, 1].
type SearchResult struct {
	Fact
	Score float64
}

// Store persists and retrieves facts.
type Store interface {
	Remember(ctx context.Context, text string, tags []string, source string) (string, error)
	Recall(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Forget(ctx context.Context, id string) error
}

// InMemoryStore is a process-local Store. Recall scores a fact by the share
// of query terms it contains; ties go to the newer fact. It is protected by
// an RWMutex and suited to tests and single-process deployments.
type InMemoryStore struct {
	mu    sync.RWMutex
	facts map[string]Fact
	now   func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{facts: make(map[string]Fact), now: time.Now}
}

// Remember stores text and returns its id.
func (m *InMemoryStore) Remember(_ context.Context, text string, tags []string, source string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("fact must not be empty")
	}
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[id] = Fact{
		ID:        id,
		Text:      text,
		Tags:      append([]string(nil), tags...),
		Source:    source,
		CreatedAt: m.now(),
	}
	return id, nil
}

// Recall returns up to limit facts sharing terms with query, best first.
// An empty query returns the newest facts with score 1.
func (m *InMemoryStore) Recall(_ context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := tokenize(query)

	m.mu.RLock()
	results := make([]SearchResult, 0, len(m.facts))
	for _, f := range m.facts {
		score := 1.0
		if len(terms) > 0 {
			score = overlap(terms, f)
		}
		if score > 0 {
			results = append(results, SearchResult{Fact: f, Score: score})
		}
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Forget removes a fact.
func (m *InMemoryStore) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.facts[id]; !ok {
		return ErrNotFound
	}
	delete(m.facts, id)
	return nil
}

// Len returns the number of stored facts.
func (m *InMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.facts)
}

func overlap(terms map[string]struct{}, f Fact) float64 {
	have := tokenize(f.Text + " " + strings.Join(f.Tags, " "))
	hits := 0
	for t := range terms {
		if _, ok := have[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			out[f] = struct{}{}
		}
	}
	return out
}
