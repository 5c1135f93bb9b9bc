// internal/services/run_ledger.go
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/models"
)

// RunRecorder keeps a record of every post creation run.
type RunRecorder interface {
	Record(ctx context.Context, run *models.PostRun) error
	ListRuns(ctx context.Context, userUUID string, limit int) ([]models.PostRun, error)
	OrphanedRuns(ctx context.Context, limit int) ([]models.PostRun, error)
}

type RunLedger struct {
	db *gorm.DB
}

func NewRunLedger(db *gorm.DB) *RunLedger {
	return &RunLedger{db: db}
}

func (l *RunLedger) Record(ctx context.Context, run *models.PostRun) error {
	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return apperrors.FromContext("record post run", err)
	}
	return nil
}

func (l *RunLedger) ListRuns(ctx context.Context, userUUID string, limit int) ([]models.PostRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []models.PostRun
	err := l.db.WithContext(ctx).
		Where("user_uuid = ?", userUUID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, apperrors.FromContext("list post runs", err)
	}

	return runs, nil
}

// OrphanedRuns lists runs that left uploaded objects behind.
func (l *RunLedger) OrphanedRuns(ctx context.Context, limit int) ([]models.PostRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []models.PostRun
	err := l.db.WithContext(ctx).
		Where("orphaned_keys <> ? AND orphaned_keys IS NOT NULL", "[]").
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, apperrors.FromContext("orphaned runs", err)
	}
	return runs, nil
}

// NopRecorder is used when the ledger is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *models.PostRun) error { return nil }

func (NopRecorder) ListRuns(context.Context, string, int) ([]models.PostRun, error) {
	return []models.PostRun{}, nil
}

func (NopRecorder) OrphanedRuns(context.Context, int) ([]models.PostRun, error) {
	return []models.PostRun{}, nil
}
