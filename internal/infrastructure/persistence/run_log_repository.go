package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
)

// GormRunLogRepository implements runlog.Repository using GORM.
// The migration adds a partial unique index on (source_kind, source_id) for
// running rows, so a second concurrent Create fails with ErrRunInProgress.
type GormRunLogRepository struct {
	db *gorm.DB
}

var _ runlog.Repository = (*GormRunLogRepository)(nil)

// NewGormRunLogRepository creates a new GormRunLogRepository
func NewGormRunLogRepository(db *gorm.DB) *GormRunLogRepository {
	return &GormRunLogRepository{db: db}
}

// Create inserts a freshly opened run
func (r *GormRunLogRepository) Create(ctx context.Context, run *runlog.RunLog) error {
	err := r.db.WithContext(ctx).Create(models.RunLogModelFromDomain(run)).Error
	if isUniqueViolation(err) {
		return runlog.ErrRunInProgress
	}
	return err
}

// Save writes the run's counters and state
func (r *GormRunLogRepository) Save(ctx context.Context, run *runlog.RunLog) error {
	return r.db.WithContext(ctx).Save(models.RunLogModelFromDomain(run)).Error
}

// FindByID finds a run by its ID
func (r *GormRunLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*runlog.RunLog, error) {
	var model models.RunLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, runlog.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRunning returns the running log of the source, or nil when none is running
func (r *GormRunLogRepository) FindRunning(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID) (*runlog.RunLog, error) {
	var model models.RunLogModel
	err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ? AND state = ?", kind, sourceID, runlog.StateRunning).
		Order("start_time DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListBySource returns the latest runs of a source, newest first
func (r *GormRunLogRepository) ListBySource(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID, limit int) ([]runlog.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.RunLogModel
	if err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", kind, sourceID).
		Order("start_time DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]runlog.RunLog, 0, len(rows))
	for i := range rows {
		runs = append(runs, *rows[i].ToDomain())
	}
	return runs, nil
}
