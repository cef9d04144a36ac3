package blueprint

import (
	"context"
	"encoding/json"
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

func completeRecord(blueprintID, sessionID string) Record {
	return Record{
		BlueprintID:        blueprintID,
		SessionID:          sessionID,
		IdeaID:             52,
		MarketResearch:     json.RawMessage(`{"market_overview":"large"}`),
		ValidationAnalysis: json.RawMessage(`{"recommendation":{"decision":"go"}}`),
		StrategicPlan:      json.RawMessage(`{"roadmap":[]}`),
		ExecutiveSummary:   "Recommendation: GO.",
		KeyInsights:        json.RawMessage(`{"validation":{"recommendation":"go"}}`),
		SuccessProbability: 69.5,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestCreateAndGetBlueprint(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := completeRecord("bp_1", "sess_1")
			if err := store.CreateBlueprint(ctx, rec); err != nil {
				t.Fatalf("create: %v", err)
			}

			loaded, err := store.GetBlueprint(ctx, "bp_1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if loaded.SessionID != "sess_1" || loaded.IdeaID != 52 {
				t.Fatalf("unexpected record: %+v", loaded)
			}
			if string(loaded.MarketResearch) != `{"market_overview":"large"}` {
				t.Fatalf("unexpected market research: %s", loaded.MarketResearch)
			}
			if loaded.ExecutiveSummary != "Recommendation: GO." {
				t.Fatalf("unexpected summary: %q", loaded.ExecutiveSummary)
			}
			if string(loaded.KeyInsights) != `{"validation":{"recommendation":"go"}}` {
				t.Fatalf("unexpected key insights: %s", loaded.KeyInsights)
			}
			if loaded.SuccessProbability != 69.5 {
				t.Fatalf("unexpected success probability: %f", loaded.SuccessProbability)
			}

			if _, err := store.GetBlueprint(ctx, "bp_missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestCreateBlueprintSecondWriteConflicts(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.CreateBlueprint(ctx, completeRecord("bp_1", "sess_1")); err != nil {
				t.Fatalf("first create: %v", err)
			}
			err := store.CreateBlueprint(ctx, completeRecord("bp_2", "sess_1"))
			if !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}

			// The original stays intact.
			if _, err := store.GetBlueprint(ctx, "bp_1"); err != nil {
				t.Fatalf("original blueprint lost: %v", err)
			}
			if _, err := store.GetBlueprint(ctx, "bp_2"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("conflicting blueprint must not persist, got %v", err)
			}
		})
	}
}

func TestCreateBlueprintValidatesSections(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			missing := completeRecord("bp_1", "sess_1")
			missing.StrategicPlan = nil
			if err := store.CreateBlueprint(ctx, missing); err == nil {
				t.Fatalf("expected error for missing section")
			}

			malformed := completeRecord("bp_2", "sess_2")
			malformed.MarketResearch = json.RawMessage(`{"broken":`)
			if err := store.CreateBlueprint(ctx, malformed); err == nil {
				t.Fatalf("expected error for malformed section")
			}
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.CreateBlueprint(ctx, completeRecord("bp_1", "sess_1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, err := store.GetBlueprint(ctx, "bp_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	loaded.MarketResearch[0] = 'X'

	again, err := store.GetBlueprint(ctx, "bp_1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if string(again.MarketResearch) != `{"market_overview":"large"}` {
		t.Fatalf("stored record mutated through returned copy: %s", again.MarketResearch)
	}
}
