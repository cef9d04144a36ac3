package session

import "time"

type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusCreated, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

type SessionRecord struct {
	SessionID       string    `json:"session_id"`
	IdeaID          int64     `json:"idea_id"`
	UserID          string    `json:"user_id,omitempty"`
	Status          Status    `json:"status"`
	BlueprintID     string    `json:"blueprint_id,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	TotalTokensUsed int64     `json:"total_tokens_used,omitempty"`
	TotalCostUSD    float64   `json:"total_cost_usd,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Totals are the usage metrics aggregated across the three stages of a
// completed run.
type Totals struct {
	TokensUsed      int64
	CostUSD         float64
	DurationSeconds float64
}
