package offline

import (
	"context"
	"sort"
	"sync"
)

// GenerationStore holds the entries of every generation.
type GenerationStore interface {
	Put(ctx context.Context, gen string, e *Entry) error
	// Get returns ErrNotCached when url is not in gen.
	Get(ctx context.Context, gen, url string) (*Entry, error)
	Count(ctx context.Context, gen string) (int, error)
	Delete(ctx context.Context, gen string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryStore keeps generations in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	gens map[string]map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{gens: make(map[string]map[string]*Entry)}
}

func (s *MemoryStore) Put(_ context.Context, gen string, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.gens[gen]
	if !ok {
		entries = make(map[string]*Entry)
		s.gens[gen] = entries
	}
	entries[e.URL] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, gen, url string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.gens[gen][url]
	if !ok {
		return nil, ErrNotCached
	}
	return e, nil
}

func (s *MemoryStore) Count(_ context.Context, gen string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens[gen]), nil
}

func (s *MemoryStore) Delete(_ context.Context, gen string) error {
	s.mu.Lock()
	delete(s.gens, gen)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.gens))
	for name := range s.gens {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}
