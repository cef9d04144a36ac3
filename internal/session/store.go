package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")

	// ErrInvalidState is returned when a transition is requested outside
	// its valid source state, e.g. starting a workflow twice.
	ErrInvalidState = errors.New("invalid session state")
)

// Store persists session records. Transitions are compare-and-set on the
// current status so that the state machine holds under concurrent callers:
// created -> running -> completed | failed, created -> cancelled | failed.
type Store interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	ListSessions(ctx context.Context, status Status, limit int) ([]SessionRecord, error)

	// MarkRunning moves created -> running and stamps StartedAt.
	MarkRunning(ctx context.Context, sessionID string) (SessionRecord, error)
	// CompleteSession moves running -> completed with the blueprint
	// reference and aggregated totals.
	CompleteSession(ctx context.Context, sessionID, blueprintID string, totals Totals) error
	// FailSession moves created|running -> failed with a reason.
	FailSession(ctx context.Context, sessionID, reason string) error
	// CancelStale moves created -> cancelled for sessions created before
	// cutoff and reports how many were reclaimed.
	CancelStale(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

func validateRecord(rec SessionRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("session_id is required")
	}
	if rec.IdeaID <= 0 {
		return fmt.Errorf("idea_id is required")
	}
	if !ValidStatus(rec.Status) {
		return fmt.Errorf("unsupported status %q", rec.Status)
	}
	return nil
}
