package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
	"github.com/mobilsoft/connectors/internal/infrastructure/secrets"
)

// GormChannelRepository implements qcommerce.ChannelRepository using GORM
type GormChannelRepository struct {
	db    *gorm.DB
	codec secrets.Codec
}

var _ qcommerce.ChannelRepository = (*GormChannelRepository)(nil)

// NewGormChannelRepository creates a new GormChannelRepository
func NewGormChannelRepository(db *gorm.DB, codec secrets.Codec) *GormChannelRepository {
	if codec == nil {
		codec = secrets.Plaintext{}
	}
	return &GormChannelRepository{db: db, codec: codec}
}

// FindByID finds a channel by its ID
func (r *GormChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*qcommerce.Channel, error) {
	var model models.QCommerceChannelModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcommerce.ErrChannelNotFound
		}
		return nil, err
	}
	return r.open(&model)
}

// FindActiveByPlatform returns the oldest active channel of the platform
func (r *GormChannelRepository) FindActiveByPlatform(ctx context.Context, platform qcommerce.PlatformType) (*qcommerce.Channel, error) {
	var model models.QCommerceChannelModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND active = ?", platform, true).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcommerce.ErrChannelNotFound
		}
		return nil, err
	}
	return r.open(&model)
}

// Save creates or updates a channel
func (r *GormChannelRepository) Save(ctx context.Context, channel *qcommerce.Channel) error {
	model := models.QCommerceChannelModelFromDomain(channel)
	var err error
	if model.APIKey, err = r.codec.Seal(channel.APIKey); err != nil {
		return fmt.Errorf("seal api key: %w", err)
	}
	if model.WebhookSecret, err = r.codec.Seal(channel.WebhookSecret); err != nil {
		return fmt.Errorf("seal webhook secret: %w", err)
	}
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormChannelRepository) open(model *models.QCommerceChannelModel) (*qcommerce.Channel, error) {
	c := model.ToDomain()
	var err error
	if c.APIKey, err = r.codec.Open(model.APIKey); err != nil {
		return nil, fmt.Errorf("open api key of channel %s: %w", model.ID, err)
	}
	if c.WebhookSecret, err = r.codec.Open(model.WebhookSecret); err != nil {
		return nil, fmt.Errorf("open webhook secret of channel %s: %w", model.ID, err)
	}
	return c, nil
}
