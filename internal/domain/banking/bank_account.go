package banking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// DefaultCurrency is used when a bank omits the account currency
const DefaultCurrency = "TRY"

// BankAccount is a managed account discovered through a connector
type BankAccount struct {
	shared.BaseEntity
	ConnectorID       uuid.UUID
	AccNumber         string
	HolderName        string
	Currency          string
	IBAN              string
	AccountType       string
	ExternalAccountID string // vendor-assigned id used by transaction endpoints
	LastSync          *time.Time
}

// NewBankAccount creates an account owned by the given connector from a remote listing
func NewBankAccount(connectorID uuid.UUID, remote RemoteAccount) (*BankAccount, error) {
	if strings.TrimSpace(remote.AccountNumber) == "" {
		return nil, shared.NewIngestError(shared.ErrData, "new bank account", ErrMissingAccountNumber)
	}
	a := &BankAccount{
		BaseEntity:  shared.NewBaseEntity(),
		ConnectorID: connectorID,
		AccNumber:   strings.TrimSpace(remote.AccountNumber),
	}
	a.Refresh(remote)
	return a, nil
}

// Refresh overwrites the mutable attributes with the latest remote listing
func (a *BankAccount) Refresh(remote RemoteAccount) {
	a.HolderName = remote.Holder
	a.Currency = normalizeCurrency(remote.Currency)
	a.IBAN = NormalizeIBAN(remote.IBAN)
	a.AccountType = remote.AccountType
	if remote.AccountID != "" {
		a.ExternalAccountID = remote.AccountID
	}
}

// HasExternalID reports whether transactions can be listed for this account
func (a *BankAccount) HasExternalID() bool {
	return a.ExternalAccountID != ""
}

// MarkSynced records a completed transaction sync for the account
func (a *BankAccount) MarkSynced(now time.Time) {
	a.LastSync = &now
	a.Touch(now)
}

func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// NormalizeIBAN removes whitespace and upper-cases an IBAN
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}
