package session

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
	if err := gormDB.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return store, nil
}

func (s *GormStore) CreateSession(ctx context.Context, rec SessionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	row := sessionRowFromRecord(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SessionRecord{}, ErrNotFound
		}
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) ListSessions(ctx context.Context, status Status, limit int) ([]SessionRecord, error) {
	query := s.db.WithContext(ctx).Model(&sessionRow{}).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []sessionRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// MarkRunning is a compare-and-set on status so a second start loses the
// race even across processes sharing the database.
func (s *GormStore) MarkRunning(ctx context.Context, sessionID string) (SessionRecord, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("session_id = ? AND status = ?", sessionID, string(StatusCreated)).
		Updates(map[string]any{
			"status":     string(StatusRunning),
			"started_at": &now,
			"updated_at": now,
		})
	if res.Error != nil {
		return SessionRecord{}, fmt.Errorf("mark running: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return SessionRecord{}, s.transitionConflict(ctx, sessionID, "mark running")
	}
	return s.GetSession(ctx, sessionID)
}

func (s *GormStore) CompleteSession(ctx context.Context, sessionID, blueprintID string, totals Totals) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("session_id = ? AND status = ?", sessionID, string(StatusRunning)).
		Updates(map[string]any{
			"status":            string(StatusCompleted),
			"blueprint_id":      blueprintID,
			"total_tokens_used": totals.TokensUsed,
			"total_cost_usd":    totals.CostUSD,
			"duration_seconds":  totals.DurationSeconds,
			"completed_at":      &now,
			"updated_at":        now,
		})
	if res.Error != nil {
		return fmt.Errorf("complete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.transitionConflict(ctx, sessionID, "complete")
	}
	return nil
}

func (s *GormStore) FailSession(ctx context.Context, sessionID, reason string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("session_id = ? AND status IN ?", sessionID, []string{string(StatusCreated), string(StatusRunning)}).
		Updates(map[string]any{
			"status":        string(StatusFailed),
			"error_message": reason,
			"completed_at":  &now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("fail session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.transitionConflict(ctx, sessionID, "fail")
	}
	return nil
}

func (s *GormStore) CancelStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("status = ? AND created_at < ?", string(StatusCreated), cutoff).
		Updates(map[string]any{
			"status":       string(StatusCancelled),
			"completed_at": &now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("cancel stale sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

// transitionConflict distinguishes a missing session from one in the wrong
// state after a zero-row CAS update.
func (s *GormStore) transitionConflict(ctx context.Context, sessionID, op string) error {
	rec, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%s from %s: %w", op, rec.Status, ErrInvalidState)
}
