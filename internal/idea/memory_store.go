package idea

import (
	"context"
	"fmt"
	"sync"
)

type MemoryStore struct {
	mu     sync.Mutex
	ideas  map[int64]Record
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ideas: make(map[int64]Record)}
}

// PutIdea seeds an idea. Production deployments read from the shared ShapeX
// database; the memory store exists for tests and local runs.
func (s *MemoryStore) PutIdea(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	s.ideas[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetIdea(_ context.Context, id int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{}, fmt.Errorf("memory store is closed")
	}
	rec, ok := s.ideas[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
