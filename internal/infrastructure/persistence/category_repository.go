package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
)

// GormCategoryRepository implements feed.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

var _ feed.CategoryRepository = (*GormCategoryRepository)(nil)

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindChild finds a category by name under the parent; a nil parent means a root category
func (r *GormCategoryRepository) FindChild(ctx context.Context, parentID *uuid.UUID, name string) (*feed.Category, error) {
	query := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	var model models.ProductCategoryModel
	if err := query.Order("created_at ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, feed.ErrCategoryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a category
func (r *GormCategoryRepository) Create(ctx context.Context, category *feed.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(&models.ProductCategoryModel{
		ID:           category.ID,
		CreatedAt:    time.Now(),
		Name:         category.Name,
		ParentID:     category.ParentID,
		CompleteName: category.CompleteName,
	}).Error
}
