package matchstore

import (
	"context"
	"strings"
	"sync"

	"github.com/park285/padel-scoreboard/internal/scoring"
)

// memstore keeps matches in process memory. Used by tests and the "memory" backend.
type memstore struct {
	mu      sync.RWMutex
	matches map[string]*scoring.Match
}

func NewMemoryStore() Store {
	return &memstore{matches: make(map[string]*scoring.Match)}
}

func (s *memstore) Create(ctx context.Context, m *scoring.Match) error {
	if m == nil {
		return ErrNotFound
	}
	key := strings.TrimSpace(m.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[key]; exists {
		return ErrConflict
	}
	m.Version = 1
	copy := m.Clone()
	s.matches[key] = &copy
	return nil
}

func (s *memstore) Get(ctx context.Context, id string) (*scoring.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[strings.TrimSpace(id)]
	if !ok || m == nil {
		return nil, ErrNotFound
	}
	copy := m.Clone()
	return &copy, nil
}

func (s *memstore) Save(ctx context.Context, m *scoring.Match) error {
	if m == nil {
		return ErrNotFound
	}
	key := strings.TrimSpace(m.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.matches[key]
	if !ok || cur == nil {
		return ErrNotFound
	}
	if cur.Version != m.Version {
		return ErrStale
	}
	m.Version++
	copy := m.Clone()
	s.matches[key] = &copy
	return nil
}
