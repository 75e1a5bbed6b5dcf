package banking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Normalized vendor payloads
// ---------------------------------------------------------------------------

// RemoteAccount is an account as listed by a bank, normalized across vendors
type RemoteAccount struct {
	AccountID     string
	AccountNumber string
	Holder        string
	Currency      string
	IBAN          string
	AccountType   string

	// DecodeErr is set when the vendor entry could not be decoded
	DecodeErr error
}

// RemoteTransaction is a transaction as listed by a bank, normalized across vendors
type RemoteTransaction struct {
	TxID             string
	ValueDate        time.Time
	Amount           decimal.Decimal
	Description      string
	CounterpartyName string
	CounterpartyIBAN string
	BalanceAfter     *decimal.Decimal

	// DecodeErr is set when the vendor entry could not be decoded
	DecodeErr error
}

// RemoteRate is a currency buy rate as listed by a bank
type RemoteRate struct {
	Currency string
	BuyRate  decimal.Decimal

	// DecodeErr is set when the vendor entry could not be decoded
	DecodeErr error
}

// ---------------------------------------------------------------------------
// BankAdapter port
// ---------------------------------------------------------------------------

// Caller performs authorized requests against a bank API.
// Implementations attach a fresh bearer token to every request.
type Caller interface {
	// GetJSON issues GET base+path with the query and decodes the JSON body into out
	GetJSON(ctx context.Context, path string, query map[string]string, out any) error
}

// BankAdapter maps canonical calls to one vendor's endpoints and payload shapes.
// Adding a bank means adding an adapter to the registry.
type BankAdapter interface {
	// BankType returns the discriminator this adapter serves
	BankType() BankType

	// BaseURL returns the API root for production or sandbox
	BaseURL(sandbox bool) string

	// TokenPath returns the OAuth2 token endpoint path relative to BaseURL
	TokenPath() string

	// Scope returns the OAuth2 scope to request for the connector
	Scope(connector *BankConnector) string

	// ListAccounts lists the accounts visible to the connector
	ListAccounts(ctx context.Context, connector *BankConnector, caller Caller) ([]RemoteAccount, error)

	// ListTransactions lists an account's transactions between from and to (inclusive dates)
	ListTransactions(ctx context.Context, connector *BankConnector, caller Caller, accountID string, from, to time.Time) ([]RemoteTransaction, error)

	// ListFXRates lists the bank's current currency buy rates
	ListFXRates(ctx context.Context, connector *BankConnector, caller Caller) ([]RemoteRate, error)
}

// CallerFactory builds an authorized Caller for a connector
type CallerFactory interface {
	NewCaller(connector *BankConnector, adapter BankAdapter, tokens TokenSource) Caller
}

// TokenSource hands out a valid access token for a connector
type TokenSource interface {
	EnsureToken(ctx context.Context, connector *BankConnector) (string, error)
	Invalidate(ctx context.Context, connector *BankConnector) error
}
