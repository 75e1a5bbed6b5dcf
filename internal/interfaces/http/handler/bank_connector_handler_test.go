package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bankingapp "github.com/mobilsoft/connectors/internal/application/banking"
	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/interfaces/http/dto"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockBankConnectorService struct {
	mock.Mock
}

func (m *mockBankConnectorService) Connect(ctx context.Context, id uuid.UUID) (*banking.BankConnector, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankConnector), args.Error(1)
}

func (m *mockBankConnectorService) Disconnect(ctx context.Context, id uuid.UUID) (*banking.BankConnector, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankConnector), args.Error(1)
}

func (m *mockBankConnectorService) TestConnection(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBankConnectorService) syncResult(args mock.Arguments) (*bankingapp.SyncResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankingapp.SyncResult), args.Error(1)
}

func (m *mockBankConnectorService) SyncAccounts(ctx context.Context, id uuid.UUID) (*bankingapp.SyncResult, error) {
	return m.syncResult(m.Called(ctx, id))
}

func (m *mockBankConnectorService) SyncTransactions(ctx context.Context, id uuid.UUID, from, to *time.Time) (*bankingapp.SyncResult, error) {
	return m.syncResult(m.Called(ctx, id, from, to))
}

func (m *mockBankConnectorService) SyncExchangeRates(ctx context.Context, id uuid.UUID) (*bankingapp.SyncResult, error) {
	return m.syncResult(m.Called(ctx, id))
}

func (m *mockBankConnectorService) SyncAll(ctx context.Context, id uuid.UUID) (*bankingapp.SyncResult, error) {
	return m.syncResult(m.Called(ctx, id))
}

type mockRunHistory struct {
	mock.Mock
}

func (m *mockRunHistory) History(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID, limit int) ([]runlog.RunLog, error) {
	args := m.Called(ctx, kind, sourceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]runlog.RunLog), args.Error(1)
}

func setupBankConnectorRouter(svc BankConnectorService, runs RunHistory) *gin.Engine {
	middleware.SetupValidator()
	r := gin.New()
	h := NewBankConnectorHandler(svc, runs)
	r.POST("/bank-connectors/:id/connect", h.Connect)
	r.POST("/bank-connectors/:id/disconnect", h.Disconnect)
	r.POST("/bank-connectors/:id/test", h.TestConnection)
	r.POST("/bank-connectors/:id/sync", h.Sync)
	r.GET("/bank-connectors/:id/runs", h.Runs)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func connectedConnector(t *testing.T) *banking.BankConnector {
	t.Helper()
	c, err := banking.NewBankConnector("Main account", banking.BankTypeZiraat, "client", "secret", true)
	require.NoError(t, err)
	now := time.Now()
	c.ApplyToken("access", "refresh", now.Add(time.Hour), now)
	return c
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestBankConnectorHandler_Connect(t *testing.T) {
	svc := new(mockBankConnectorService)
	connector := connectedConnector(t)
	svc.On("Connect", mock.Anything, connector.ID).Return(connector, nil)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+connector.ID.String()+"/connect", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse[BankConnectorResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "connected", resp.Data.State)
	assert.Equal(t, "ziraat", resp.Data.BankType)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.NotContains(t, w.Body.String(), "access")
	svc.AssertExpectations(t)
}

func TestBankConnectorHandler_ConnectAuthFailure(t *testing.T) {
	svc := new(mockBankConnectorService)
	id := uuid.New()
	svc.On("Connect", mock.Anything, id).
		Return(nil, shared.NewIngestError(shared.ErrAuth, "token", errors.New("invalid_client")))

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/connect", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeUpstreamAuth, decodeResponse(t, w).Error.Code)
}

func TestBankConnectorHandler_Disconnect(t *testing.T) {
	svc := new(mockBankConnectorService)
	connector := connectedConnector(t)
	connector.Disconnect(time.Now())
	svc.On("Disconnect", mock.Anything, connector.ID).Return(connector, nil)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+connector.ID.String()+"/disconnect", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"disconnected"`)
}

func TestBankConnectorHandler_TestConnection(t *testing.T) {
	svc := new(mockBankConnectorService)
	id := uuid.New()
	svc.On("TestConnection", mock.Anything, id).Return(nil)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/test", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Connection successful")
}

func TestBankConnectorHandler_InvalidID(t *testing.T) {
	svc := new(mockBankConnectorService)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/not-a-uuid/connect", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "Connect", 0)
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

func TestBankConnectorHandler_SyncDispatch(t *testing.T) {
	tests := []struct {
		operation string
		method    string
	}{
		{SyncOperationAccounts, "SyncAccounts"},
		{SyncOperationExchangeRates, "SyncExchangeRates"},
		{SyncOperationAll, "SyncAll"},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			svc := new(mockBankConnectorService)
			id := uuid.New()
			svc.On(tt.method, mock.Anything, id).
				Return(&bankingapp.SyncResult{Count: 3, Created: 3, Message: "3 records synced"}, nil)

			w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/sync",
				`{"operation":"`+tt.operation+`"}`)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), "3 records synced")
			svc.AssertExpectations(t)
		})
	}
}

func TestBankConnectorHandler_SyncTransactionsWindow(t *testing.T) {
	svc := new(mockBankConnectorService)
	id := uuid.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	svc.On("SyncTransactions", mock.Anything, id,
		mock.MatchedBy(func(t *time.Time) bool { return t != nil && t.Equal(from) }),
		mock.MatchedBy(func(t *time.Time) bool { return t != nil && t.Equal(to) }),
	).Return(&bankingapp.SyncResult{Count: 10, Message: "10 transactions"}, nil)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/sync",
		`{"operation":"transactions","date_from":"2024-01-01","date_to":"2024-01-31"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestBankConnectorHandler_SyncTransactionsDefaultWindow(t *testing.T) {
	svc := new(mockBankConnectorService)
	id := uuid.New()
	svc.On("SyncTransactions", mock.Anything, id, (*time.Time)(nil), (*time.Time)(nil)).
		Return(&bankingapp.SyncResult{Message: "0 transactions"}, nil)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/sync",
		`{"operation":"transactions"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestBankConnectorHandler_SyncValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing operation", `{}`},
		{"unknown operation", `{"operation":"loans"}`},
		{"malformed date", `{"operation":"transactions","date_from":"01/02/2024"}`},
		{"inverted window", `{"operation":"transactions","date_from":"2024-02-01","date_to":"2024-01-01"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockBankConnectorService)
			w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+uuid.NewString()+"/sync", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, svc.Calls)
		})
	}
}

func TestBankConnectorHandler_SyncAlreadyRunning(t *testing.T) {
	svc := new(mockBankConnectorService)
	id := uuid.New()
	svc.On("SyncAll", mock.Anything, id).Return(nil, runlog.ErrRunInProgress)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/sync", `{"operation":"all"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeConflict, decodeResponse(t, w).Error.Code)
}

func TestBankConnectorHandler_SyncPartialFailureCarriesResult(t *testing.T) {
	svc := new(mockBankConnectorService)
	id := uuid.New()
	result := &bankingapp.SyncResult{
		Count:   2,
		Failed:  1,
		Errors:  []string{"TR12: timeout"},
		Message: "2 of 3 accounts synced",
	}
	svc.On("SyncAccounts", mock.Anything, id).
		Return(result, shared.NewIngestError(shared.ErrNetwork, "accounts", errors.New("timeout")))

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/sync", `{"operation":"accounts"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "2 of 3 accounts synced", resp.Error.Message)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["failed"])
}

func TestBankConnectorHandler_SyncNotFound(t *testing.T) {
	svc := new(mockBankConnectorService)
	id := uuid.New()
	svc.On("SyncAccounts", mock.Anything, id).Return(nil, banking.ErrConnectorNotFound)

	w := postJSON(setupBankConnectorRouter(svc, nil), "/bank-connectors/"+id.String()+"/sync", `{"operation":"accounts"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

func TestBankConnectorHandler_Runs(t *testing.T) {
	runs := new(mockRunHistory)
	id := uuid.New()
	run := runlog.Open(runlog.SourceKindBankConnector, id, "Main account", runlog.OperationSyncAccounts, time.Now())
	runs.On("History", mock.Anything, runlog.SourceKindBankConnector, id, DefaultRunHistoryLimit).
		Return([]runlog.RunLog{*run}, nil)

	req := httptest.NewRequest(http.MethodGet, "/bank-connectors/"+id.String()+"/runs", nil)
	w := httptest.NewRecorder()
	setupBankConnectorRouter(new(mockBankConnectorService), runs).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse[[]RunLogResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "sync_accounts", resp.Data[0].Operation)
	assert.Equal(t, "running", resp.Data[0].State)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	runs.AssertExpectations(t)
}

func TestBankConnectorHandler_RunsLimitValidation(t *testing.T) {
	runs := new(mockRunHistory)

	req := httptest.NewRequest(http.MethodGet, "/bank-connectors/"+uuid.NewString()+"/runs?limit=500", nil)
	w := httptest.NewRecorder()
	setupBankConnectorRouter(new(mockBankConnectorService), runs).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, runs.Calls)
}
