package blueprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("blueprint not found")

	// ErrConflict is returned on a second write for the same session.
	// Blueprints are 1:1 with completed sessions and immutable.
	ErrConflict = errors.New("blueprint already exists for session")
)

// Record is the final artifact of a completed session: one structured
// section per stage, written atomically once all three exist.
type Record struct {
	BlueprintID        string          `json:"id"`
	SessionID          string          `json:"session_id"`
	IdeaID             int64           `json:"idea_id"`
	MarketResearch     json.RawMessage `json:"market_research"`
	ValidationAnalysis json.RawMessage `json:"validation_analysis"`
	StrategicPlan      json.RawMessage `json:"strategic_plan"`
	ExecutiveSummary   string          `json:"executive_summary,omitempty"`
	KeyInsights        json.RawMessage `json:"key_insights,omitempty"`
	SuccessProbability float64         `json:"success_probability"`
	CreatedAt          time.Time       `json:"created_at"`
}

type Store interface {
	// CreateBlueprint persists a fully assembled record. A duplicate
	// session reference fails with ErrConflict.
	CreateBlueprint(ctx context.Context, rec Record) error
	GetBlueprint(ctx context.Context, blueprintID string) (Record, error)
	Close() error
}

func validateRecord(rec Record) error {
	if strings.TrimSpace(rec.BlueprintID) == "" {
		return fmt.Errorf("blueprint id is required")
	}
	if strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("session_id is required")
	}
	for name, section := range map[string]json.RawMessage{
		"market_research":     rec.MarketResearch,
		"validation_analysis": rec.ValidationAnalysis,
		"strategic_plan":      rec.StrategicPlan,
	} {
		if len(section) == 0 {
			return fmt.Errorf("section %s is required", name)
		}
		if !json.Valid(section) {
			return fmt.Errorf("section %s must be valid json", name)
		}
	}
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneRecord(rec Record) Record {
	rec.MarketResearch = cloneRaw(rec.MarketResearch)
	rec.ValidationAnalysis = cloneRaw(rec.ValidationAnalysis)
	rec.StrategicPlan = cloneRaw(rec.StrategicPlan)
	rec.KeyInsights = cloneRaw(rec.KeyInsights)
	return rec
}
