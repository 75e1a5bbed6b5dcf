package bank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
)

// stubTokens hands out numbered tokens and counts invalidations
type stubTokens struct {
	issued      int32
	invalidated int32
	err         error
}

func (s *stubTokens) EnsureToken(_ context.Context, _ *banking.BankConnector) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	atomic.AddInt32(&s.issued, 1)
	return fmt.Sprintf("token-%d", atomic.LoadInt32(&s.invalidated)+1), nil
}

func (s *stubTokens) Invalidate(_ context.Context, _ *banking.BankConnector) error {
	atomic.AddInt32(&s.invalidated, 1)
	return nil
}

func createMockBankServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient() *Client {
	cfg := httpclient.DefaultConfig()
	cfg.BackoffFactor = time.Millisecond
	return NewClient(httpclient.New(cfg), nil)
}

func newTestConnector(t *testing.T, bankType banking.BankType) *banking.BankConnector {
	t.Helper()
	c, err := banking.NewBankConnector("test", bankType, "cid", "secret", false)
	require.NoError(t, err)
	return c
}

func TestGarantiAdapter(t *testing.T) {
	server := createMockBankServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/accounts":
			_, _ = w.Write([]byte(`{"accounts":[
				{"accountId":"A1","accountNumber":"1001","accountName":"Acme","currency":"TRY","iban":"TR12 0006 2000 0000 0000 0000 01"},
				{"accountId":42,"accountNumber":1002,"currency":"USD"},
				"garbage"
			]}`))
		case "/v1/accounts/A1/transactions":
			assert.Equal(t, "2026-01-01", r.URL.Query().Get("fromDate"))
			assert.Equal(t, "2026-01-31", r.URL.Query().Get("toDate"))
			_, _ = w.Write([]byte(`{"transactions":[
				{"transactionId":"TX-001","valueDate":"2026-01-05","amount":"1500.25","description":"Fatura","counterpartyName":"Beta Ltd","counterpartyIban":"TR33","balanceAfter":9000},
				{"transactionId":"TX-002","valueDate":"2026-01-06T10:00:00Z","amount":-20}
			]}`))
		case "/v1/fx/rates":
			_, _ = w.Write([]byte(`{"rates":[{"currency":"USD","buyRate":"32.5"},{"currency":"EUR"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	adapter := NewGarantiAdapter(&GarantiConfig{ProductionURL: server.URL, TokenPath: "/oauth2/token", DefaultScope: GarantiDefaultScope}, nil)
	connector := newTestConnector(t, banking.BankTypeGarantiBBVA)
	caller := newTestClient().NewCaller(connector, adapter, &stubTokens{})
	ctx := context.Background()

	accounts, err := adapter.ListAccounts(ctx, connector, caller)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "A1", accounts[0].AccountID)
	assert.Equal(t, "Acme", accounts[0].Holder)
	assert.Equal(t, "42", accounts[1].AccountID)
	assert.Equal(t, "1002", accounts[1].AccountNumber)
	assert.NoError(t, accounts[1].DecodeErr)
	require.Error(t, accounts[2].DecodeErr, "malformed items are reported")
	assert.ErrorIs(t, accounts[2].DecodeErr, shared.ErrData)
	assert.Empty(t, accounts[2].AccountNumber)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	txs, err := adapter.ListTransactions(ctx, connector, caller, "A1", from, to)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "TX-001", txs[0].TxID)
	assert.True(t, decimal.RequireFromString("1500.25").Equal(txs[0].Amount))
	require.NotNil(t, txs[0].BalanceAfter)
	assert.True(t, decimal.NewFromInt(9000).Equal(*txs[0].BalanceAfter))
	assert.Equal(t, "Beta Ltd", txs[0].CounterpartyName)
	assert.Nil(t, txs[1].BalanceAfter)
	assert.True(t, decimal.NewFromInt(-20).Equal(txs[1].Amount))

	rates, err := adapter.ListFXRates(ctx, connector, caller)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.True(t, decimal.RequireFromString("32.5").Equal(rates[0].BuyRate))
	assert.True(t, rates[1].BuyRate.IsZero())

	assert.Equal(t, GarantiDefaultScope, adapter.Scope(connector))
	connector.Scope = "accounts"
	assert.Equal(t, "accounts", adapter.Scope(connector))
}

func TestZiraatAdapter_Corporate(t *testing.T) {
	server := createMockBankServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/accounts/v1/corporate/accounts":
			_, _ = w.Write([]byte(`{"accounts":[{"accountId":"Z1","accountNumber":"5001"}]}`))
		case "/accounts/v1/corporate/accounts/Z1/transactions":
			assert.Equal(t, "2026-02-01", r.URL.Query().Get("startDate"))
			assert.Equal(t, "2026-02-10", r.URL.Query().Get("endDate"))
			_, _ = w.Write([]byte(`{"transactions":[{"referenceNumber":"R-9","transactionDate":"2026-02-03","amount":"10"}]}`))
		case "/fx/v1/rates":
			_, _ = w.Write([]byte(`{"rates":[{"currencyCode":"EUR","buyingRate":35.1},{"currencyCode":"GBP","buyRate":"41"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	adapter := NewZiraatAdapter(&ZiraatConfig{ProductionURL: server.URL, TokenPath: "/oauth/token", CorporateScope: ZiraatCorporateScope}, nil)
	connector := newTestConnector(t, banking.BankTypeZiraat)
	connector.IsCorporate = true
	caller := newTestClient().NewCaller(connector, adapter, &stubTokens{})
	ctx := context.Background()

	assert.Equal(t, ZiraatCorporateScope, adapter.Scope(connector))

	accounts, err := adapter.ListAccounts(ctx, connector, caller)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	txs, err := adapter.ListTransactions(ctx, connector, caller, "Z1",
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "R-9", txs[0].TxID)
	assert.Equal(t, 3, txs[0].ValueDate.Day())

	rates, err := adapter.ListFXRates(ctx, connector, caller)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "EUR", rates[0].Currency)
	assert.True(t, decimal.NewFromInt(41).Equal(rates[1].BuyRate))
}

func TestQNBAdapter_Fallbacks(t *testing.T) {
	server := createMockBankServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/accounts":
			_, _ = w.Write([]byte(`{"accounts":[{"accountId":"Q1","iban":"TR990000"}]}`))
		case "/v1/accounts/Q1/transactions":
			_, _ = w.Write([]byte(`{"transactions":[{"referenceNo":"N-1","amount":5,"senderName":"Gamma","senderIban":"TR11"}]}`))
		case "/v1/fx/exchange-rates":
			_, _ = w.Write([]byte(`{"exchangeRates":[{"currency":"USD","buyingRate":"32"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	adapter := NewQNBAdapter(&QNBConfig{ProductionURL: server.URL, TokenPath: "/oauth/token", Scope: QNBDefaultScope}, nil)
	connector := newTestConnector(t, banking.BankTypeQNB)
	caller := newTestClient().NewCaller(connector, adapter, &stubTokens{})
	ctx := context.Background()

	accounts, err := adapter.ListAccounts(ctx, connector, caller)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "TR990000", accounts[0].AccountNumber)

	txs, err := adapter.ListTransactions(ctx, connector, caller, "Q1", time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "N-1", txs[0].TxID)
	assert.Equal(t, "Gamma", txs[0].CounterpartyName)
	assert.Equal(t, "TR11", txs[0].CounterpartyIBAN)
	assert.True(t, txs[0].ValueDate.IsZero())

	rates, err := adapter.ListFXRates(ctx, connector, caller)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "USD", rates[0].Currency)
}

func TestCaller_RetriesOnceAfterUnauthorized(t *testing.T) {
	var calls int32
	server := createMockBankServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"accounts":[]}`))
	})

	adapter := NewQNBAdapter(&QNBConfig{ProductionURL: server.URL}, nil)
	connector := newTestConnector(t, banking.BankTypeQNB)
	tokens := &stubTokens{}
	caller := newTestClient().NewCaller(connector, adapter, tokens)

	accounts, err := adapter.ListAccounts(context.Background(), connector, caller)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.invalidated))
}

func TestCaller_PersistentUnauthorized(t *testing.T) {
	server := createMockBankServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	adapter := NewQNBAdapter(&QNBConfig{ProductionURL: server.URL}, nil)
	connector := newTestConnector(t, banking.BankTypeQNB)
	caller := newTestClient().NewCaller(connector, adapter, &stubTokens{})

	_, err := adapter.ListAccounts(context.Background(), connector, caller)
	assert.ErrorIs(t, err, shared.ErrAuth)
}

func TestCaller_TokenFailure(t *testing.T) {
	adapter := NewQNBAdapter(nil, nil)
	connector := newTestConnector(t, banking.BankTypeQNB)
	tokenErr := shared.NewIngestError(shared.ErrAuth, "token exchange", nil)
	caller := newTestClient().NewCaller(connector, adapter, &stubTokens{err: tokenErr})

	_, err := adapter.ListAccounts(context.Background(), connector, caller)
	assert.ErrorIs(t, err, shared.ErrAuth)
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry(Endpoints{}, nil)
	for _, bt := range banking.AllBankTypes() {
		a, err := registry.Get(bt)
		require.NoError(t, err)
		assert.NotEmpty(t, a.BaseURL(false))
		assert.NotEmpty(t, a.BaseURL(true))
		assert.NotEmpty(t, a.TokenPath())
	}
}
