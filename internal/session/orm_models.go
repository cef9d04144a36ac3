package session

import "time"

type sessionRow struct {
	SessionID       string     `gorm:"primaryKey;size:64"`
	IdeaID          int64      `gorm:"not null;index"`
	UserID          string     `gorm:"size:191"`
	Status          string     `gorm:"size:32;not null;index"`
	BlueprintID     string     `gorm:"size:64"`
	ErrorMessage    string     `gorm:"type:text"`
	TotalTokensUsed int64      `gorm:"not null;default:0"`
	TotalCostUSD    float64    `gorm:"not null;default:0"`
	DurationSeconds float64    `gorm:"not null;default:0"`
	CreatedAt       time.Time  `gorm:"not null;index"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time `gorm:"not null"`
}

func (sessionRow) TableName() string {
	return "studio_sessions"
}

func (r sessionRow) toRecord() SessionRecord {
	rec := SessionRecord{
		SessionID:       r.SessionID,
		IdeaID:          r.IdeaID,
		UserID:          r.UserID,
		Status:          Status(r.Status),
		BlueprintID:     r.BlueprintID,
		ErrorMessage:    r.ErrorMessage,
		TotalTokensUsed: r.TotalTokensUsed,
		TotalCostUSD:    r.TotalCostUSD,
		DurationSeconds: r.DurationSeconds,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.StartedAt != nil {
		rec.StartedAt = *r.StartedAt
	}
	if r.CompletedAt != nil {
		rec.CompletedAt = *r.CompletedAt
	}
	return rec
}

func sessionRowFromRecord(rec SessionRecord) sessionRow {
	row := sessionRow{
		SessionID:       rec.SessionID,
		IdeaID:          rec.IdeaID,
		UserID:          rec.UserID,
		Status:          string(rec.Status),
		BlueprintID:     rec.BlueprintID,
		ErrorMessage:    rec.ErrorMessage,
		TotalTokensUsed: rec.TotalTokensUsed,
		TotalCostUSD:    rec.TotalCostUSD,
		DurationSeconds: rec.DurationSeconds,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
	if !rec.StartedAt.IsZero() {
		started := rec.StartedAt
		row.StartedAt = &started
	}
	if !rec.CompletedAt.IsZero() {
		completed := rec.CompletedAt
		row.CompletedAt = &completed
	}
	return row
}
