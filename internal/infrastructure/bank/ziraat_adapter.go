package bank

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
)

// ZiraatAdapter implements banking.BankAdapter for Ziraat Bankası.
// Corporate connectors use the corporate account endpoints and scope.
type ZiraatAdapter struct {
	config *ZiraatConfig
	logger *zap.Logger
}

// NewZiraatAdapter creates a Ziraat adapter; a nil config uses the published endpoints
func NewZiraatAdapter(config *ZiraatConfig, logger *zap.Logger) *ZiraatAdapter {
	if config == nil {
		config = DefaultZiraatConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZiraatAdapter{config: config, logger: logger}
}

var _ banking.BankAdapter = (*ZiraatAdapter)(nil)

func (a *ZiraatAdapter) BankType() banking.BankType {
	return banking.BankTypeZiraat
}

func (a *ZiraatAdapter) BaseURL(sandbox bool) string {
	if sandbox {
		return a.config.SandboxURL
	}
	return a.config.ProductionURL
}

func (a *ZiraatAdapter) TokenPath() string {
	return a.config.TokenPath
}

func (a *ZiraatAdapter) Scope(connector *banking.BankConnector) string {
	if connector.IsCorporate {
		return a.config.CorporateScope
	}
	return connector.Scope
}

func (a *ZiraatAdapter) accountsPath(connector *banking.BankConnector) string {
	if connector.IsCorporate {
		return "/accounts/v1/corporate/accounts"
	}
	return "/accounts/v1/accounts"
}

// ListAccounts calls GET /accounts/v1/accounts or its corporate variant
func (a *ZiraatAdapter) ListAccounts(ctx context.Context, connector *banking.BankConnector, caller banking.Caller) ([]banking.RemoteAccount, error) {
	var resp ziraatAccountsResponse
	if err := caller.GetJSON(ctx, a.accountsPath(connector), nil, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[ziraatAccount](a.logger, a.BankType(), "account", resp.Accounts)
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

// ListTransactions calls GET .../{id}/transactions?startDate&endDate
func (a *ZiraatAdapter) ListTransactions(ctx context.Context, connector *banking.BankConnector, caller banking.Caller, accountID string, from, to time.Time) ([]banking.RemoteTransaction, error) {
	path := a.accountsPath(connector) + "/" + url.PathEscape(accountID) + "/transactions"
	query := map[string]string{
		"startDate": from.Format(queryDateLayout),
		"endDate":   to.Format(queryDateLayout),
	}

	var resp ziraatTransactionsResponse
	if err := caller.GetJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[ziraatTransaction](a.logger, a.BankType(), "transaction", resp.Transactions)
	txs := make([]banking.RemoteTransaction, 0, len(items))
	for _, tx := range items {
		txs = append(txs, banking.RemoteTransaction{
			TxID:             firstString(tx.TransactionID, tx.ReferenceNumber),
			ValueDate:        firstDate(tx.ValueDate, tx.TransactionDate),
			Amount:           tx.Amount.Decimal,
			Description:      string(tx.Description),
			CounterpartyName: string(tx.CounterpartyName),
			CounterpartyIBAN: string(tx.CounterpartyIBAN),
			BalanceAfter:     firstDecimal(tx.BalanceAfter, tx.Balance).ptr(),
		})
	}
	for _, err := range bad {
		txs = append(txs, banking.RemoteTransaction{DecodeErr: err})
	}
	return txs, nil
}

// ListFXRates calls GET /fx/v1/rates
func (a *ZiraatAdapter) ListFXRates(ctx context.Context, _ *banking.BankConnector, caller banking.Caller) ([]banking.RemoteRate, error) {
	var resp ziraatRatesResponse
	if err := caller.GetJSON(ctx, "/fx/v1/rates", nil, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[ziraatRate](a.logger, a.BankType(), "rate", resp.Rates)
	rates := make([]banking.RemoteRate, 0, len(items))
	for _, r := range items {
		rates = append(rates, banking.RemoteRate{
			Currency: string(r.CurrencyCode),
			BuyRate:  firstDecimal(r.BuyingRate, r.BuyRate).Decimal,
		})
	}
	for _, err := range bad {
		rates = append(rates, banking.RemoteRate{DecodeErr: err})
	}
	return rates, nil
}
