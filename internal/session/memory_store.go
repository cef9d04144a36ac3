package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]SessionRecord
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]SessionRecord)}
}

func (s *MemoryStore) CreateSession(_ context.Context, rec SessionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	if _, ok := s.sessions[rec.SessionID]; ok {
		return fmt.Errorf("session %s already exists", rec.SessionID)
	}
	s.sessions[rec.SessionID] = rec
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SessionRecord{}, fmt.Errorf("memory store is closed")
	}
	rec, ok := s.sessions[sessionID]
	if !ok {
		return SessionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, status Status, limit int) ([]SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("memory store is closed")
	}

	out := make([]SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRunning(_ context.Context, sessionID string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SessionRecord{}, fmt.Errorf("memory store is closed")
	}

	rec, ok := s.sessions[sessionID]
	if !ok {
		return SessionRecord{}, ErrNotFound
	}
	if rec.Status != StatusCreated {
		return SessionRecord{}, fmt.Errorf("mark running from %s: %w", rec.Status, ErrInvalidState)
	}

	now := time.Now().UTC()
	rec.Status = StatusRunning
	rec.StartedAt = now
	rec.UpdatedAt = now
	s.sessions[sessionID] = rec
	return rec, nil
}

func (s *MemoryStore) CompleteSession(_ context.Context, sessionID, blueprintID string, totals Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	rec, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusRunning {
		return fmt.Errorf("complete from %s: %w", rec.Status, ErrInvalidState)
	}

	now := time.Now().UTC()
	rec.Status = StatusCompleted
	rec.BlueprintID = blueprintID
	rec.TotalTokensUsed = totals.TokensUsed
	rec.TotalCostUSD = totals.CostUSD
	rec.DurationSeconds = totals.DurationSeconds
	rec.CompletedAt = now
	rec.UpdatedAt = now
	s.sessions[sessionID] = rec
	return nil
}

func (s *MemoryStore) FailSession(_ context.Context, sessionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	rec, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusCreated && rec.Status != StatusRunning {
		return fmt.Errorf("fail from %s: %w", rec.Status, ErrInvalidState)
	}

	now := time.Now().UTC()
	rec.Status = StatusFailed
	rec.ErrorMessage = reason
	rec.CompletedAt = now
	rec.UpdatedAt = now
	s.sessions[sessionID] = rec
	return nil
}

func (s *MemoryStore) CancelStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("memory store is closed")
	}

	now := time.Now().UTC()
	var reclaimed int64
	for id, rec := range s.sessions {
		if rec.Status != StatusCreated || !rec.CreatedAt.Before(cutoff) {
			continue
		}
		rec.Status = StatusCancelled
		rec.CompletedAt = now
		rec.UpdatedAt = now
		s.sessions[id] = rec
		reclaimed++
	}
	return reclaimed, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
