package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mobilsoft/connectors/internal/domain/banking"
)

// BankConnectorModel is the persistence model for the BankConnector aggregate.
// Secret columns hold sealed values; the repository seals and opens them.
type BankConnectorModel struct {
	BaseModel
	Name                string                 `gorm:"type:varchar(200);not null"`
	BankType            banking.BankType       `gorm:"type:varchar(30);not null;index"`
	SandboxMode         bool                   `gorm:"not null"`
	CompanyID           uuid.UUID              `gorm:"type:uuid"`
	BankRef             string                 `gorm:"type:varchar(100)"`
	ClientID            string                 `gorm:"type:varchar(255);not null"`
	ClientSecret        string                 `gorm:"type:text;not null"`
	Scope               string                 `gorm:"type:varchar(255)"`
	IsCorporate         bool                   `gorm:"not null"`
	CorporateCustomerNo string                 `gorm:"type:varchar(100)"`
	AccessToken         string                 `gorm:"type:text"`
	RefreshToken        string                 `gorm:"type:text"`
	TokenExpiresAt      *time.Time
	State               banking.ConnectorState `gorm:"type:varchar(20);not null;default:'draft';index"`
	LastError           string                 `gorm:"type:text"`
	LastSync            *time.Time
	AutoSyncEnabled     bool                   `gorm:"not null"`
	SyncIntervalMinutes int                    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BankConnectorModel) TableName() string {
	return "bank_connectors"
}

// ToDomain converts the model to a domain connector without opening secrets
func (m *BankConnectorModel) ToDomain() *banking.BankConnector {
	return &banking.BankConnector{
		BaseEntity:          m.BaseModel.Entity(),
		Name:                m.Name,
		BankType:            m.BankType,
		SandboxMode:         m.SandboxMode,
		CompanyID:           m.CompanyID,
		BankRef:             m.BankRef,
		ClientID:            m.ClientID,
		ClientSecret:        m.ClientSecret,
		Scope:               m.Scope,
		IsCorporate:         m.IsCorporate,
		CorporateCustomerNo: m.CorporateCustomerNo,
		AccessToken:         m.AccessToken,
		RefreshToken:        m.RefreshToken,
		TokenExpiresAt:      m.TokenExpiresAt,
		State:               m.State,
		LastError:           m.LastError,
		LastSync:            m.LastSync,
		AutoSyncEnabled:     m.AutoSyncEnabled,
		SyncIntervalMinutes: m.SyncIntervalMinutes,
	}
}

// BankConnectorModelFromDomain creates a model from a domain connector
func BankConnectorModelFromDomain(c *banking.BankConnector) *BankConnectorModel {
	m := &BankConnectorModel{
		Name:                c.Name,
		BankType:            c.BankType,
		SandboxMode:         c.SandboxMode,
		CompanyID:           c.CompanyID,
		BankRef:             c.BankRef,
		ClientID:            c.ClientID,
		ClientSecret:        c.ClientSecret,
		Scope:               c.Scope,
		IsCorporate:         c.IsCorporate,
		CorporateCustomerNo: c.CorporateCustomerNo,
		AccessToken:         c.AccessToken,
		RefreshToken:        c.RefreshToken,
		TokenExpiresAt:      c.TokenExpiresAt,
		State:               c.State,
		LastError:           c.LastError,
		LastSync:            c.LastSync,
		AutoSyncEnabled:     c.AutoSyncEnabled,
		SyncIntervalMinutes: c.SyncIntervalMinutes,
	}
	m.SetEntity(c.BaseEntity)
	return m
}

// BankAccountModel is the persistence model for a managed bank account
type BankAccountModel struct {
	BaseModel
	ConnectorID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_bank_accounts_connector_number,priority:1"`
	AccNumber         string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_bank_accounts_connector_number,priority:2"`
	HolderName        string    `gorm:"type:varchar(255)"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'TRY'"`
	IBAN              string    `gorm:"column:iban;type:varchar(34);index"`
	AccountType       string    `gorm:"type:varchar(50)"`
	ExternalAccountID string    `gorm:"type:varchar(100)"`
	LastSync          *time.Time
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return "bank_accounts"
}

// ToDomain converts the model to a domain account
func (m *BankAccountModel) ToDomain() *banking.BankAccount {
	return &banking.BankAccount{
		BaseEntity:        m.BaseModel.Entity(),
		ConnectorID:       m.ConnectorID,
		AccNumber:         m.AccNumber,
		HolderName:        m.HolderName,
		Currency:          m.Currency,
		IBAN:              m.IBAN,
		AccountType:       m.AccountType,
		ExternalAccountID: m.ExternalAccountID,
		LastSync:          m.LastSync,
	}
}

// BankAccountModelFromDomain creates a model from a domain account
func BankAccountModelFromDomain(a *banking.BankAccount) *BankAccountModel {
	m := &BankAccountModel{
		ConnectorID:       a.ConnectorID,
		AccNumber:         a.AccNumber,
		HolderName:        a.HolderName,
		Currency:          a.Currency,
		IBAN:              a.IBAN,
		AccountType:       a.AccountType,
		ExternalAccountID: a.ExternalAccountID,
		LastSync:          a.LastSync,
	}
	m.SetEntity(a.BaseEntity)
	return m
}

// StatementLineModel is the persistence model for an imported statement line.
// bank_import_ref is unique so a concurrent duplicate insert fails at the database.
type StatementLineModel struct {
	ID               uuid.UUID         `gorm:"type:uuid;primary_key"`
	AccountID        uuid.UUID         `gorm:"type:uuid;not null;index"`
	Reference        string            `gorm:"type:varchar(100);not null"`
	ValueDate        time.Time         `gorm:"type:date;not null;index"`
	Amount           decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	Direction        banking.Direction `gorm:"type:varchar(10);not null"`
	Description      string            `gorm:"type:text"`
	CounterpartyName string            `gorm:"type:varchar(255)"`
	CounterpartyIBAN string            `gorm:"column:counterparty_iban;type:varchar(34)"`
	BalanceAfter     *decimal.Decimal  `gorm:"type:decimal(18,2)"`
	PartnerID        *uuid.UUID        `gorm:"type:uuid;index"`
	BankImportRef    string            `gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt        time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StatementLineModel) TableName() string {
	return "statement_lines"
}

// ToDomain converts the model to a domain statement line
func (m *StatementLineModel) ToDomain() *banking.StatementLine {
	return &banking.StatementLine{
		ID:               m.ID,
		AccountID:        m.AccountID,
		Reference:        m.Reference,
		ValueDate:        m.ValueDate,
		Amount:           m.Amount,
		Direction:        m.Direction,
		Description:      m.Description,
		CounterpartyName: m.CounterpartyName,
		CounterpartyIBAN: m.CounterpartyIBAN,
		BalanceAfter:     m.BalanceAfter,
		PartnerID:        m.PartnerID,
		BankImportRef:    m.BankImportRef,
		CreatedAt:        m.CreatedAt,
	}
}

// StatementLineModelFromDomain creates a model from a domain statement line
func StatementLineModelFromDomain(l *banking.StatementLine) *StatementLineModel {
	return &StatementLineModel{
		ID:               l.ID,
		AccountID:        l.AccountID,
		Reference:        l.Reference,
		ValueDate:        l.ValueDate,
		Amount:           l.Amount,
		Direction:        l.Direction,
		Description:      l.Description,
		CounterpartyName: l.CounterpartyName,
		CounterpartyIBAN: l.CounterpartyIBAN,
		BalanceAfter:     l.BalanceAfter,
		PartnerID:        l.PartnerID,
		BankImportRef:    l.BankImportRef,
		CreatedAt:        l.CreatedAt,
	}
}

// CurrencyRateModel is the persistence model for a currency rate.
// One row exists per (currency, effective_date, source).
type CurrencyRateModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	Currency      string          `gorm:"type:varchar(3);not null;uniqueIndex:uq_currency_rates_key,priority:1"`
	Rate          decimal.Decimal `gorm:"type:decimal(24,12);not null"`
	BuyRate       decimal.Decimal `gorm:"type:decimal(24,6);not null"`
	EffectiveDate time.Time       `gorm:"type:date;not null;uniqueIndex:uq_currency_rates_key,priority:2"`
	Source        string          `gorm:"type:varchar(30);not null;uniqueIndex:uq_currency_rates_key,priority:3"`
	ConnectorID   *uuid.UUID      `gorm:"type:uuid"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CurrencyRateModel) TableName() string {
	return "currency_rates"
}

// ToDomain converts the model to a domain rate
func (m *CurrencyRateModel) ToDomain() *banking.CurrencyRate {
	return &banking.CurrencyRate{
		ID:            m.ID,
		Currency:      m.Currency,
		Rate:          m.Rate,
		BuyRate:       m.BuyRate,
		EffectiveDate: m.EffectiveDate,
		Source:        m.Source,
		ConnectorID:   m.ConnectorID,
		UpdatedAt:     m.UpdatedAt,
	}
}

// CurrencyRateModelFromDomain creates a model from a domain rate
func CurrencyRateModelFromDomain(r *banking.CurrencyRate) *CurrencyRateModel {
	return &CurrencyRateModel{
		ID:            r.ID,
		Currency:      r.Currency,
		Rate:          r.Rate,
		BuyRate:       r.BuyRate,
		EffectiveDate: r.EffectiveDate,
		Source:        r.Source,
		ConnectorID:   r.ConnectorID,
		UpdatedAt:     r.UpdatedAt,
	}
}

// PartnerModel is a counterparty used for statement line attribution
type PartnerModel struct {
	BaseModel
	Name         string                    `gorm:"type:varchar(255);not null;index"`
	TaxID        string                    `gorm:"type:varchar(20);index"`
	BankAccounts []PartnerBankAccountModel `gorm:"foreignKey:PartnerID"`
}

// TableName returns the table name for GORM
func (PartnerModel) TableName() string {
	return "partners"
}

// ToDomain converts the model to a domain partner
func (m *PartnerModel) ToDomain() banking.Partner {
	p := banking.Partner{ID: m.ID, Name: m.Name, TaxID: m.TaxID}
	for _, acc := range m.BankAccounts {
		p.IBANs = append(p.IBANs, acc.IBAN)
	}
	return p
}

// PartnerBankAccountModel is an IBAN registered for a partner
type PartnerBankAccountModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	PartnerID uuid.UUID `gorm:"type:uuid;not null;index"`
	IBAN      string    `gorm:"column:iban;type:varchar(34);not null;index"`
}

// TableName returns the table name for GORM
func (PartnerBankAccountModel) TableName() string {
	return "partner_bank_accounts"
}
