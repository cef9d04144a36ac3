package idea

import (
	"context"
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
	if err := gormDB.AutoMigrate(&ideaRow{}); err != nil {
		return nil, fmt.Errorf("migrate ideas: %w", err)
	}
	return store, nil
}

func (s *GormStore) GetIdea(ctx context.Context, id int64) (Record, error) {
	var row ideaRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get idea: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) PutIdea(ctx context.Context, rec Record) error {
	row := ideaRowFromRecord(rec)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("put idea: %w", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

type ideaRow struct {
	ID           int64     `gorm:"primaryKey"`
	Title        string    `gorm:"size:255;not null"`
	Description  string    `gorm:"type:text;not null"`
	Category     string    `gorm:"size:100"`
	TargetMarket string    `gorm:"size:255"`
	RevenueModel string    `gorm:"size:255"`
	OverallScore float64   `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (ideaRow) TableName() string {
	return "ideas"
}

func (r ideaRow) toRecord() Record {
	return Record{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		TargetMarket: r.TargetMarket,
		RevenueModel: r.RevenueModel,
		OverallScore: r.OverallScore,
		CreatedAt:    r.CreatedAt,
	}
}

func ideaRowFromRecord(rec Record) ideaRow {
	return ideaRow{
		ID:           rec.ID,
		Title:        rec.Title,
		Description:  rec.Description,
		Category:     rec.Category,
		TargetMarket: rec.TargetMarket,
		RevenueModel: rec.RevenueModel,
		OverallScore: rec.OverallScore,
		CreatedAt:    rec.CreatedAt,
	}
}
