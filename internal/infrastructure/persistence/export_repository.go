package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
	"github.com/mobilsoft/connectors/internal/infrastructure/secrets"
)

// GormExportRepository implements feed.ExportRepository using GORM.
// Export passwords are sealed with the secrets codec.
type GormExportRepository struct {
	db    *gorm.DB
	codec secrets.Codec
}

var _ feed.ExportRepository = (*GormExportRepository)(nil)

// NewGormExportRepository creates a new GormExportRepository
func NewGormExportRepository(db *gorm.DB, codec secrets.Codec) *GormExportRepository {
	if codec == nil {
		codec = secrets.Plaintext{}
	}
	return &GormExportRepository{db: db, codec: codec}
}

// FindByToken finds an export with its field mappings ordered by sequence
func (r *GormExportRepository) FindByToken(ctx context.Context, token string) (*feed.ProductExport, error) {
	var model models.ProductExportModel
	if err := r.db.WithContext(ctx).
		Preload("FieldMappings", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		First(&model, "access_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, feed.ErrExportNotFound
		}
		return nil, err
	}
	e := model.ToDomain()
	password, err := r.codec.Open(model.Password)
	if err != nil {
		return nil, fmt.Errorf("open password of export %s: %w", model.ID, err)
	}
	e.Password = password
	return e, nil
}

// Save writes the export and replaces its field mappings in one transaction
func (r *GormExportRepository) Save(ctx context.Context, export *feed.ProductExport) error {
	model := models.ProductExportModelFromDomain(export)
	sealed, err := r.codec.Seal(export.Password)
	if err != nil {
		return fmt.Errorf("seal export password: %w", err)
	}
	model.Password = sealed
	mappings := model.FieldMappings
	model.FieldMappings = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("FieldMappings").Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("export_id = ?", export.ID).Delete(&models.ExportFieldMappingModel{}).Error; err != nil {
			return err
		}
		if len(mappings) > 0 {
			return tx.Create(&mappings).Error
		}
		return nil
	})
}

// RecordAccess stamps the last access and increments the counter in place
func (r *GormExportRepository) RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.ProductExportModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_access":  at,
			"access_count": gorm.Expr("access_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return feed.ErrExportNotFound
	}
	return nil
}
