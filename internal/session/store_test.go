package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kc-vaultik/shapex-studio/internal/db"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	gormDB, err := db.OpenGorm("sqlite", filepath.Join(t.TempDir(), "studio.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	gormStore, err := NewGormStore(gormDB)
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}
	t.Cleanup(func() { _ = gormStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   gormStore,
	}
}

func newRecord(sessionID string, createdAt time.Time) SessionRecord {
	return SessionRecord{
		SessionID: sessionID,
		IdeaID:    52,
		UserID:    "user_1",
		Status:    StatusCreated,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCreateAndGetSession(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := newRecord("sess_1", time.Now().UTC())
			if err := store.CreateSession(ctx, rec); err != nil {
				t.Fatalf("create: %v", err)
			}

			loaded, err := store.GetSession(ctx, "sess_1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if loaded.IdeaID != 52 || loaded.Status != StatusCreated || loaded.UserID != "user_1" {
				t.Fatalf("unexpected record: %+v", loaded)
			}

			if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestCreateSessionValidates(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.CreateSession(ctx, SessionRecord{IdeaID: 1, Status: StatusCreated}); err == nil {
				t.Fatalf("expected error for missing session id")
			}
			if err := store.CreateSession(ctx, SessionRecord{SessionID: "s", Status: StatusCreated}); err == nil {
				t.Fatalf("expected error for missing idea id")
			}
			if err := store.CreateSession(ctx, SessionRecord{SessionID: "s", IdeaID: 1, Status: "sleeping"}); err == nil {
				t.Fatalf("expected error for bad status")
			}
		})
	}
}

func TestLifecycleCreatedRunningCompleted(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.CreateSession(ctx, newRecord("sess_1", time.Now().UTC())); err != nil {
				t.Fatalf("create: %v", err)
			}

			running, err := store.MarkRunning(ctx, "sess_1")
			if err != nil {
				t.Fatalf("mark running: %v", err)
			}
			if running.Status != StatusRunning {
				t.Fatalf("unexpected status: %s", running.Status)
			}
			if running.StartedAt.IsZero() {
				t.Fatalf("expected started_at stamp")
			}

			totals := Totals{TokensUsed: 300, CostUSD: 0.15, DurationSeconds: 12.5}
			if err := store.CompleteSession(ctx, "sess_1", "bp_1", totals); err != nil {
				t.Fatalf("complete: %v", err)
			}

			final, err := store.GetSession(ctx, "sess_1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if final.Status != StatusCompleted || final.BlueprintID != "bp_1" {
				t.Fatalf("unexpected final record: %+v", final)
			}
			if final.TotalTokensUsed != 300 || final.TotalCostUSD != 0.15 {
				t.Fatalf("totals not persisted: %+v", final)
			}
			if final.CompletedAt.IsZero() {
				t.Fatalf("expected completed_at stamp")
			}
		})
	}
}

func TestMarkRunningTwice(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.CreateSession(ctx, newRecord("sess_1", time.Now().UTC())); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := store.MarkRunning(ctx, "sess_1"); err != nil {
				t.Fatalf("first mark running: %v", err)
			}
			if _, err := store.MarkRunning(ctx, "sess_1"); !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
			if _, err := store.MarkRunning(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestFailSessionFromCreatedAndRunning(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.CreateSession(ctx, newRecord("sess_created", time.Now().UTC())); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := store.FailSession(ctx, "sess_created", "abandoned"); err != nil {
				t.Fatalf("fail from created: %v", err)
			}

			if err := store.CreateSession(ctx, newRecord("sess_running", time.Now().UTC())); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := store.MarkRunning(ctx, "sess_running"); err != nil {
				t.Fatalf("mark running: %v", err)
			}
			if err := store.FailSession(ctx, "sess_running", "stage exploded"); err != nil {
				t.Fatalf("fail from running: %v", err)
			}

			failed, err := store.GetSession(ctx, "sess_running")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if failed.Status != StatusFailed || failed.ErrorMessage != "stage exploded" {
				t.Fatalf("unexpected failed record: %+v", failed)
			}

			// Terminal states are final.
			if err := store.FailSession(ctx, "sess_running", "again"); !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
		})
	}
}

func TestCompleteRequiresRunning(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.CreateSession(ctx, newRecord("sess_1", time.Now().UTC())); err != nil {
				t.Fatalf("create: %v", err)
			}
			err := store.CompleteSession(ctx, "sess_1", "bp_1", Totals{})
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
		})
	}
}

func TestListSessionsFilterAndLimit(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Add(-time.Hour)
			for i, id := range []string{"sess_a", "sess_b", "sess_c"} {
				if err := store.CreateSession(ctx, newRecord(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
					t.Fatalf("create %s: %v", id, err)
				}
			}
			if _, err := store.MarkRunning(ctx, "sess_b"); err != nil {
				t.Fatalf("mark running: %v", err)
			}

			created, err := store.ListSessions(ctx, StatusCreated, 0)
			if err != nil {
				t.Fatalf("list created: %v", err)
			}
			if len(created) != 2 {
				t.Fatalf("expected 2 created sessions, got %d", len(created))
			}

			all, err := store.ListSessions(ctx, "", 2)
			if err != nil {
				t.Fatalf("list limited: %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("expected limit of 2, got %d", len(all))
			}
			// Newest first.
			if all[0].CreatedAt.Before(all[1].CreatedAt) {
				t.Fatalf("expected newest-first order: %v then %v", all[0].CreatedAt, all[1].CreatedAt)
			}
		})
	}
}

func TestCancelStale(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := time.Now().UTC().Add(-time.Hour)
			fresh := time.Now().UTC()

			if err := store.CreateSession(ctx, newRecord("sess_old", old)); err != nil {
				t.Fatalf("create old: %v", err)
			}
			if err := store.CreateSession(ctx, newRecord("sess_fresh", fresh)); err != nil {
				t.Fatalf("create fresh: %v", err)
			}
			if err := store.CreateSession(ctx, newRecord("sess_running", old)); err != nil {
				t.Fatalf("create running: %v", err)
			}
			if _, err := store.MarkRunning(ctx, "sess_running"); err != nil {
				t.Fatalf("mark running: %v", err)
			}

			reclaimed, err := store.CancelStale(ctx, time.Now().UTC().Add(-30*time.Minute))
			if err != nil {
				t.Fatalf("cancel stale: %v", err)
			}
			if reclaimed != 1 {
				t.Fatalf("expected 1 reclaimed, got %d", reclaimed)
			}

			cancelled, err := store.GetSession(ctx, "sess_old")
			if err != nil {
				t.Fatalf("get cancelled: %v", err)
			}
			if cancelled.Status != StatusCancelled {
				t.Fatalf("expected cancelled, got %s", cancelled.Status)
			}
			untouched, err := store.GetSession(ctx, "sess_fresh")
			if err != nil {
				t.Fatalf("get fresh: %v", err)
			}
			if untouched.Status != StatusCreated {
				t.Fatalf("fresh session must stay created, got %s", untouched.Status)
			}
			running, err := store.GetSession(ctx, "sess_running")
			if err != nil {
				t.Fatalf("get running: %v", err)
			}
			if running.Status != StatusRunning {
				t.Fatalf("running session must not be reclaimed, got %s", running.Status)
			}
		})
	}
}
