package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
	"github.com/mobilsoft/connectors/internal/infrastructure/secrets"
)

// GormXMLSourceRepository implements feed.SourceRepository using GORM.
// Field and category mappings are stored in xml_field_mappings and
// xml_category_mappings and replaced as sets on Save.
type GormXMLSourceRepository struct {
	db    *gorm.DB
	codec secrets.Codec
}

var _ feed.SourceRepository = (*GormXMLSourceRepository)(nil)

// NewGormXMLSourceRepository creates a new GormXMLSourceRepository
func NewGormXMLSourceRepository(db *gorm.DB, codec secrets.Codec) *GormXMLSourceRepository {
	if codec == nil {
		codec = secrets.Plaintext{}
	}
	return &GormXMLSourceRepository{db: db, codec: codec}
}

// FindByID finds a source with its mappings ordered by sequence
func (r *GormXMLSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*feed.XMLProductSource, error) {
	var model models.XMLProductSourceModel
	if err := r.withMappings(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, feed.ErrSourceNotFound
		}
		return nil, err
	}
	return r.open(&model)
}

// FindAutoSync returns sources with auto sync enabled that are active or in error
func (r *GormXMLSourceRepository) FindAutoSync(ctx context.Context) ([]feed.XMLProductSource, error) {
	var rows []models.XMLProductSourceModel
	if err := r.withMappings(ctx).
		Where("auto_sync = ? AND state IN ?", true, []feed.SourceState{feed.SourceStateActive, feed.SourceStateError}).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	sources := make([]feed.XMLProductSource, 0, len(rows))
	for i := range rows {
		s, err := r.open(&rows[i])
		if err != nil {
			return nil, err
		}
		sources = append(sources, *s)
	}
	return sources, nil
}

// Save writes the source and replaces its mappings in one transaction
func (r *GormXMLSourceRepository) Save(ctx context.Context, source *feed.XMLProductSource) error {
	model := models.XMLProductSourceModelFromDomain(source)
	sealed, err := r.codec.Seal(source.Password)
	if err != nil {
		return fmt.Errorf("seal feed password: %w", err)
	}
	model.Password = sealed
	mappings, categoryMappings := model.Mappings, model.CategoryMappings
	model.Mappings, model.CategoryMappings = nil, nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Mappings", "CategoryMappings").Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("source_id = ?", source.ID).Delete(&models.XMLFieldMappingModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("source_id = ?", source.ID).Delete(&models.XMLCategoryMappingModel{}).Error; err != nil {
			return err
		}
		if len(mappings) > 0 {
			if err := tx.Create(&mappings).Error; err != nil {
				return err
			}
		}
		if len(categoryMappings) > 0 {
			return tx.Create(&categoryMappings).Error
		}
		return nil
	})
}

func (r *GormXMLSourceRepository) withMappings(ctx context.Context) *gorm.DB {
	bySequence := func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	}
	return r.db.WithContext(ctx).
		Preload("Mappings", bySequence).
		Preload("CategoryMappings", bySequence)
}

func (r *GormXMLSourceRepository) open(model *models.XMLProductSourceModel) (*feed.XMLProductSource, error) {
	s := model.ToDomain()
	password, err := r.codec.Open(model.Password)
	if err != nil {
		return nil, fmt.Errorf("open feed password of source %s: %w", model.ID, err)
	}
	s.Password = password
	return s, nil
}
