package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/infrastructure/secrets"
)

// GormBankingUnitOfWork implements banking.UnitOfWork with one GORM transaction per call
type GormBankingUnitOfWork struct {
	db    *gorm.DB
	codec secrets.Codec
}

var _ banking.UnitOfWork = (*GormBankingUnitOfWork)(nil)

// NewGormBankingUnitOfWork creates a unit of work
func NewGormBankingUnitOfWork(db *gorm.DB, codec secrets.Codec) *GormBankingUnitOfWork {
	return &GormBankingUnitOfWork{db: db, codec: codec}
}

// Do runs fn inside a transaction. Returning an error rolls everything back.
func (u *GormBankingUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos banking.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewBankingRepositories(tx, u.codec))
	})
}

// NewBankingRepositories binds the banking repositories to db
func NewBankingRepositories(db *gorm.DB, codec secrets.Codec) banking.Repositories {
	return banking.Repositories{
		Connectors: NewGormBankConnectorRepository(db, codec),
		Accounts:   NewGormBankAccountRepository(db),
		Lines:      NewGormStatementLineRepository(db),
		Rates:      NewGormCurrencyRateRepository(db),
		Partners:   NewGormPartnerDirectory(db),
	}
}
