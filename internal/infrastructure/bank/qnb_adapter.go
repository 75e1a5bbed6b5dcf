package bank

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
)

// QNBAdapter implements banking.BankAdapter for QNB Finansbank
type QNBAdapter struct {
	config *QNBConfig
	logger *zap.Logger
}

// NewQNBAdapter creates a QNB adapter; a nil config uses the published endpoints
func NewQNBAdapter(config *QNBConfig, logger *zap.Logger) *QNBAdapter {
	if config == nil {
		config = DefaultQNBConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QNBAdapter{config: config, logger: logger}
}

var _ banking.BankAdapter = (*QNBAdapter)(nil)

func (a *QNBAdapter) BankType() banking.BankType {
	return banking.BankTypeQNB
}

func (a *QNBAdapter) BaseURL(sandbox bool) string {
	if sandbox {
		return a.config.SandboxURL
	}
	return a.config.ProductionURL
}

func (a *QNBAdapter) TokenPath() string {
	return a.config.TokenPath
}

func (a *QNBAdapter) Scope(_ *banking.BankConnector) string {
	return a.config.Scope
}

// ListAccounts calls GET /v1/accounts. Accounts without a number fall back to the IBAN.
func (a *QNBAdapter) ListAccounts(ctx context.Context, _ *banking.BankConnector, caller banking.Caller) ([]banking.RemoteAccount, error) {
	var resp qnbAccountsResponse
	if err := caller.GetJSON(ctx, "/v1/accounts", nil, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[qnbAccount](a.logger, a.BankType(), "account", resp.Accounts)
	accounts := make([]banking.RemoteAccount, 0, len(items))
	for _, acc := range items {
		accounts = append(accounts, banking.RemoteAccount{
			AccountID:     string(acc.AccountID),
			AccountNumber: firstString(acc.AccountNumber, acc.IBAN),
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
func (a *QNBAdapter) ListTransactions(ctx context.Context, _ *banking.BankConnector, caller banking.Caller, accountID string, from, to time.Time) ([]banking.RemoteTransaction, error) {
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/transactions"
	query := map[string]string{
		"fromDate": from.Format(queryDateLayout),
		"toDate":   to.Format(queryDateLayout),
	}

	var resp qnbTransactionsResponse
	if err := caller.GetJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	items, bad := decodeItems[qnbTransaction](a.logger, a.BankType(), "transaction", resp.Transactions)
	txs := make([]banking.RemoteTransaction, 0, len(items))
	for _, tx := range items {
		txs = append(txs, banking.RemoteTransaction{
			TxID:             firstString(tx.TransactionID, tx.ReferenceNo),
			ValueDate:        firstDate(tx.ValueDate, tx.TransactionDate),
			Amount:           tx.Amount.Decimal,
			Description:      string(tx.Description),
			CounterpartyName: firstString(tx.CounterpartyName, tx.SenderName),
			CounterpartyIBAN: firstString(tx.CounterpartyIBAN, tx.SenderIBAN),
			BalanceAfter:     tx.BalanceAfter.ptr(),
		})
	}
	for _, err := range bad {
		txs = append(txs, banking.RemoteTransaction{DecodeErr: err})
	}
	return txs, nil
}

// ListFXRates calls GET /v1/fx/exchange-rates
func (a *QNBAdapter) ListFXRates(ctx context.Context, _ *banking.BankConnector, caller banking.Caller) ([]banking.RemoteRate, error) {
	var resp qnbRatesResponse
	if err := caller.GetJSON(ctx, "/v1/fx/exchange-rates", nil, &resp); err != nil {
		return nil, err
	}

	raw := resp.Rates
	if len(raw) == 0 {
		raw = resp.ExchangeRates
	}
	items, bad := decodeItems[qnbRate](a.logger, a.BankType(), "rate", raw)
	rates := make([]banking.RemoteRate, 0, len(items))
	for _, r := range items {
		rates = append(rates, banking.RemoteRate{
			Currency: firstString(r.CurrencyCode, r.Currency),
			BuyRate:  firstDecimal(r.BuyRate, r.BuyingRate).Decimal,
		})
	}
	for _, err := range bad {
		rates = append(rates, banking.RemoteRate{DecodeErr: err})
	}
	return rates, nil
}
