package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
)

// GormBankAccountRepository implements banking.AccountRepository using GORM
type GormBankAccountRepository struct {
	db *gorm.DB
}

var _ banking.AccountRepository = (*GormBankAccountRepository)(nil)

// NewGormBankAccountRepository creates a new GormBankAccountRepository
func NewGormBankAccountRepository(db *gorm.DB) *GormBankAccountRepository {
	return &GormBankAccountRepository{db: db}
}

// FindByConnector lists the accounts managed by a connector, ordered by account number
func (r *GormBankAccountRepository) FindByConnector(ctx context.Context, connectorID uuid.UUID) ([]banking.BankAccount, error) {
	var rows []models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Where("connector_id = ?", connectorID).
		Order("acc_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make([]banking.BankAccount, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].ToDomain())
	}
	return accounts, nil
}

// FindByNumber finds an account by (connector, account number)
func (r *GormBankAccountRepository) FindByNumber(ctx context.Context, connectorID uuid.UUID, accNumber string) (*banking.BankAccount, error) {
	var model models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Where("connector_id = ? AND acc_number = ?", connectorID, accNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, banking.ErrAccountNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an account
func (r *GormBankAccountRepository) Save(ctx context.Context, account *banking.BankAccount) error {
	return r.db.WithContext(ctx).Save(models.BankAccountModelFromDomain(account)).Error
}
