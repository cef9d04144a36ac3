package blueprint

import (
	"context"
	"fmt"
	"sync"
)

type MemoryStore struct {
	mu         sync.Mutex
	blueprints map[string]Record
	bySession  map[string]string
	closed     bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blueprints: make(map[string]Record),
		bySession:  make(map[string]string),
	}
}

func (s *MemoryStore) CreateBlueprint(_ context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	if _, ok := s.bySession[rec.SessionID]; ok {
		return fmt.Errorf("session %s: %w", rec.SessionID, ErrConflict)
	}
	if _, ok := s.blueprints[rec.BlueprintID]; ok {
		return fmt.Errorf("blueprint %s already exists", rec.BlueprintID)
	}

	s.blueprints[rec.BlueprintID] = cloneRecord(rec)
	s.bySession[rec.SessionID] = rec.BlueprintID
	return nil
}

func (s *MemoryStore) GetBlueprint(_ context.Context, blueprintID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{}, fmt.Errorf("memory store is closed")
	}
	rec, ok := s.blueprints[blueprintID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
