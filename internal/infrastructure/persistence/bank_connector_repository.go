package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
	"github.com/mobilsoft/connectors/internal/infrastructure/secrets"
)

// GormBankConnectorRepository implements banking.ConnectorRepository using GORM.
// Client secrets and tokens are sealed with the codec before they are written.
type GormBankConnectorRepository struct {
	db    *gorm.DB
	codec secrets.Codec
}

var _ banking.ConnectorRepository = (*GormBankConnectorRepository)(nil)

// NewGormBankConnectorRepository creates a new GormBankConnectorRepository.
// A nil codec stores secrets as-is.
func NewGormBankConnectorRepository(db *gorm.DB, codec secrets.Codec) *GormBankConnectorRepository {
	if codec == nil {
		codec = secrets.Plaintext{}
	}
	return &GormBankConnectorRepository{db: db, codec: codec}
}

// FindByID finds a connector by its ID
func (r *GormBankConnectorRepository) FindByID(ctx context.Context, id uuid.UUID) (*banking.BankConnector, error) {
	var model models.BankConnectorModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, banking.ErrConnectorNotFound
		}
		return nil, err
	}
	return r.open(&model)
}

// FindAutoSync returns connected connectors with auto sync enabled
func (r *GormBankConnectorRepository) FindAutoSync(ctx context.Context) ([]banking.BankConnector, error) {
	var rows []models.BankConnectorModel
	if err := r.db.WithContext(ctx).
		Where("auto_sync_enabled = ? AND state = ?", true, banking.ConnectorStateConnected).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	connectors := make([]banking.BankConnector, 0, len(rows))
	for i := range rows {
		c, err := r.open(&rows[i])
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, *c)
	}
	return connectors, nil
}

// Save creates or updates a connector
func (r *GormBankConnectorRepository) Save(ctx context.Context, connector *banking.BankConnector) error {
	model := models.BankConnectorModelFromDomain(connector)
	var err error
	if model.ClientSecret, err = r.codec.Seal(connector.ClientSecret); err != nil {
		return fmt.Errorf("seal client secret: %w", err)
	}
	if model.AccessToken, err = r.codec.Seal(connector.AccessToken); err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	if model.RefreshToken, err = r.codec.Seal(connector.RefreshToken); err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormBankConnectorRepository) open(model *models.BankConnectorModel) (*banking.BankConnector, error) {
	c := model.ToDomain()
	var err error
	if c.ClientSecret, err = r.codec.Open(model.ClientSecret); err != nil {
		return nil, fmt.Errorf("open client secret of connector %s: %w", model.ID, err)
	}
	if c.AccessToken, err = r.codec.Open(model.AccessToken); err != nil {
		return nil, fmt.Errorf("open access token of connector %s: %w", model.ID, err)
	}
	if c.RefreshToken, err = r.codec.Open(model.RefreshToken); err != nil {
		return nil, fmt.Errorf("open refresh token of connector %s: %w", model.ID, err)
	}
	return c, nil
}
