package bank

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
)

// GarantiAdapter implements banking.BankAdapter for GarantiBBVA
type GarantiAdapter struct {
	config *GarantiConfig
	logger *zap.Logger
}

// NewGarantiAdapter creates a GarantiBBVA adapter; a nil config uses the published endpoints
func NewGarantiAdapter(config *GarantiConfig, logger *zap.Logger) *GarantiAdapter {
	if config == nil {
		config = DefaultGarantiConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarantiAdapter{config: config, logger: logger}
}

var _ banking.BankAdapter = (*GarantiAdapter)(nil)

func (a *GarantiAdapter) BankType() banking.BankType {
	return banking.BankTypeGarantiBBVA
}

func (a *GarantiAdapter) BaseURL(sandbox bool) string {
	if sandbox {
		return a.config.SandboxURL
	}
	return a.config.ProductionURL
}

func (a *GarantiAdapter) TokenPath() string {
	return a.config.TokenPath
}

func (a *GarantiAdapter) Scope(connector *banking.BankConnector) string {
	if connector.Scope != "" {
		return connector.Scope
	}
	return a.config.DefaultScope
}

// ListAccounts calls GET /v1/accounts
func (a *GarantiAdapter) ListAccounts(ctx context.Context, _ *banking.BankConnector, caller banking.Caller) ([]banking.RemoteAccount, error) {
	var resp garantiAccountsResponse
	if err := caller.GetJSON(ctx, "/v1/accounts", nil, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[garantiAccount](a.logger, a.BankType(), "account", resp.Accounts)
	accounts := make([]banking.RemoteAccount, 0, len(items))
	for _, acc := range items {
		accounts = append(accounts, banking.RemoteAccount{
			AccountID:     string(acc.AccountID),
			AccountNumber: string(acc.AccountNumber),
			Holder:        string(acc.AccountName),
			Currency:      string(acc.Currency),
			IBAN:          string(acc.IBAN),
			AccountType:   string(acc.AccountType),
		})
	}
	for _, err := range bad {
		accounts = append(accounts, banking.RemoteAccount{DecodeErr: err})
	}
	return accounts, nil
}

// ListTransactions calls GET /v1/accounts/{id}/transactions?fromDate&toDate
func (a *GarantiAdapter) ListTransactions(ctx context.Context, _ *banking.BankConnector, caller banking.Caller, accountID string, from, to time.Time) ([]banking.RemoteTransaction, error) {
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/transactions"
	query := map[string]string{
		"fromDate": from.Format(queryDateLayout),
		"toDate":   to.Format(queryDateLayout),
	}

	var resp garantiTransactionsResponse
	if err := caller.GetJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[garantiTransaction](a.logger, a.BankType(), "transaction", resp.Transactions)
	txs := make([]banking.RemoteTransaction, 0, len(items))
	for _, tx := range items {
		txs = append(txs, banking.RemoteTransaction{
			TxID:             string(tx.TransactionID),
			ValueDate:        tx.ValueDate.Time,
			Amount:           tx.Amount.Decimal,
			Description:      string(tx.Description),
			CounterpartyName: string(tx.CounterpartyName),
			CounterpartyIBAN: string(tx.CounterpartyIBAN),
			BalanceAfter:     tx.BalanceAfter.ptr(),
		})
	}
	for _, err := range bad {
		txs = append(txs, banking.RemoteTransaction{DecodeErr: err})
	}
	return txs, nil
}

// ListFXRates calls GET /v1/fx/rates
func (a *GarantiAdapter) ListFXRates(ctx context.Context, _ *banking.BankConnector, caller banking.Caller) ([]banking.RemoteRate, error) {
	var resp garantiRatesResponse
	if err := caller.GetJSON(ctx, "/v1/fx/rates", nil, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[garantiRate](a.logger, a.BankType(), "rate", resp.Rates)
	rates := make([]banking.RemoteRate, 0, len(items))
	for _, r := range items {
		rates = append(rates, banking.RemoteRate{Currency: string(r.Currency), BuyRate: r.BuyRate.Decimal})
	}
	for _, err := range bad {
		rates = append(rates, banking.RemoteRate{DecodeErr: err})
	}
	return rates, nil
}
