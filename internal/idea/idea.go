package idea

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("idea not found")

// Record is the read-only view of a ShapeX idea consumed by the studio
// pipeline. The studio never mutates ideas.
type Record struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category,omitempty"`
	TargetMarket string    `json:"target_market,omitempty"`
	RevenueModel string    `json:"revenue_model,omitempty"`
	OverallScore float64   `json:"overall_score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store interface {
	GetIdea(ctx context.Context, id int64) (Record, error)
	Close() error
}
