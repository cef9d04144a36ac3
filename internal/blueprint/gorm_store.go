package blueprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(gormDB *gorm.DB) (*GormStore, error) {
	store := &GormStore{db: gormDB}
	if err := gormDB.AutoMigrate(&blueprintRow{}); err != nil {
		return nil, fmt.Errorf("migrate blueprints: %w", err)
	}
	return store, nil
}

func (s *GormStore) CreateBlueprint(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	// The unique session_id index is the real guard; the pre-check gives
	// a typed error instead of a driver-specific constraint failure.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&blueprintRow{}).
			Where("session_id = ?", rec.SessionID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check existing blueprint: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("session %s: %w", rec.SessionID, ErrConflict)
		}

		row := blueprintRowFromRecord(rec)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create blueprint: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetBlueprint(ctx context.Context, blueprintID string) (Record, error) {
	var row blueprintRow
	err := s.db.WithContext(ctx).Where("blueprint_id = ?", blueprintID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get blueprint: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

type blueprintRow struct {
	BlueprintID        string    `gorm:"primaryKey;size:64"`
	SessionID          string    `gorm:"size:64;not null;uniqueIndex"`
	IdeaID             int64     `gorm:"not null;index"`
	MarketResearch     string    `gorm:"type:text;not null"`
	ValidationAnalysis string    `gorm:"type:text;not null"`
	StrategicPlan      string    `gorm:"type:text;not null"`
	ExecutiveSummary   string    `gorm:"type:text"`
	KeyInsights        string    `gorm:"type:text"`
	SuccessProbability float64   `gorm:"not null;default:0"`
	CreatedAt          time.Time `gorm:"not null"`
}

func (blueprintRow) TableName() string {
	return "blueprints"
}

func (r blueprintRow) toRecord() Record {
	return Record{
		BlueprintID:        r.BlueprintID,
		SessionID:          r.SessionID,
		IdeaID:             r.IdeaID,
		MarketResearch:     json.RawMessage(r.MarketResearch),
		ValidationAnalysis: json.RawMessage(r.ValidationAnalysis),
		StrategicPlan:      json.RawMessage(r.StrategicPlan),
		ExecutiveSummary:   r.ExecutiveSummary,
		KeyInsights:        rawOrNil(r.KeyInsights),
		SuccessProbability: r.SuccessProbability,
		CreatedAt:          r.CreatedAt,
	}
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func blueprintRowFromRecord(rec Record) blueprintRow {
	return blueprintRow{
		BlueprintID:        rec.BlueprintID,
		SessionID:          rec.SessionID,
		IdeaID:             rec.IdeaID,
		MarketResearch:     string(rec.MarketResearch),
		ValidationAnalysis: string(rec.ValidationAnalysis),
		StrategicPlan:      string(rec.StrategicPlan),
		ExecutiveSummary:   rec.ExecutiveSummary,
		KeyInsights:        string(rec.KeyInsights),
		SuccessProbability: rec.SuccessProbability,
		CreatedAt:          rec.CreatedAt,
	}
}
