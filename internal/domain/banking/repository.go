package banking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnectorRepository persists connectors
type ConnectorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BankConnector, error)
	FindAutoSync(ctx context.Context) ([]BankConnector, error)
	Save(ctx context.Context, connector *BankConnector) error
}

// AccountRepository persists managed bank accounts
type AccountRepository interface {
	FindByConnector(ctx context.Context, connectorID uuid.UUID) ([]BankAccount, error)
	FindByNumber(ctx context.Context, connectorID uuid.UUID, accNumber string) (*BankAccount, error)
	Save(ctx context.Context, account *BankAccount) error
}

// StatementLineRepository persists imported statement lines.
// Create returns an error matching shared.ErrDuplicateIgnored when the import reference already exists.
type StatementLineRepository interface {
	ExistsByImportRef(ctx context.Context, ref string) (bool, error)
	Create(ctx context.Context, line *StatementLine) error
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// CurrencyRateRepository persists currency rates.
// Upsert keeps one row per (currency, effective date, source).
type CurrencyRateRepository interface {
	Upsert(ctx context.Context, rate *CurrencyRate) error
	FindByKey(ctx context.Context, currency string, date time.Time, source string) (*CurrencyRate, error)
}

// PartnerDirectory resolves counterparties for attribution
type PartnerDirectory interface {
	FindByIBAN(ctx context.Context, iban string) ([]Partner, error)
	FindByTaxID(ctx context.Context, taxID string) ([]Partner, error)
	FindByExactName(ctx context.Context, name string) ([]Partner, error)
}

// UnitOfWork runs fn with repositories bound to a single transaction
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Repositories groups the repositories that share a transaction
type Repositories struct {
	Connectors ConnectorRepository
	Accounts   AccountRepository
	Lines      StatementLineRepository
	Rates      CurrencyRateRepository
	Partners   PartnerDirectory
}
