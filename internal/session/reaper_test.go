package session

import (
	"context"
	"io"
	"log"
	"testing"
	"time"
)

func TestReaperReclaimsAbandonedSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stale := newRecord("sess_stale", time.Now().UTC().Add(-time.Hour))
	if err := store.CreateSession(ctx, stale); err != nil {
		t.Fatalf("create stale: %v", err)
	}
	if err := store.CreateSession(ctx, newRecord("sess_fresh", time.Now().UTC())); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	reaper := NewReaper(log.New(io.Discard, "", 0), store, 30*time.Minute, 10*time.Millisecond)
	reaper.Start()
	defer reaper.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := store.GetSession(ctx, "sess_stale")
		if err != nil {
			t.Fatalf("get stale: %v", err)
		}
		if rec.Status == StatusCancelled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stale session never reclaimed, status=%s", rec.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	fresh, err := store.GetSession(ctx, "sess_fresh")
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if fresh.Status != StatusCreated {
		t.Fatalf("fresh session must stay created, got %s", fresh.Status)
	}
}

func TestReaperStopTerminates(t *testing.T) {
	reaper := NewReaper(log.New(io.Discard, "", 0), NewMemoryStore(), time.Minute, 10*time.Millisecond)
	reaper.Start()

	done := make(chan struct{})
	go func() {
		reaper.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("reaper did not stop")
	}
}
