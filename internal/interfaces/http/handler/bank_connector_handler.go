package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	bankingapp "github.com/mobilsoft/connectors/internal/application/banking"
	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

// dateLayout is the calendar date format accepted by sync windows
const dateLayout = "2006-01-02"

// Sync operations accepted by the sync endpoint
const (
	SyncOperationAccounts      = "accounts"
	SyncOperationTransactions  = "transactions"
	SyncOperationExchangeRates = "exchange_rates"
	SyncOperationAll           = "all"
)

// BankConnectorService is the connector lifecycle and sync surface used by the handler
type BankConnectorService interface {
	Connect(ctx context.Context, id uuid.UUID) (*banking.BankConnector, error)
	Disconnect(ctx context.Context, id uuid.UUID) (*banking.BankConnector, error)
	TestConnection(ctx context.Context, id uuid.UUID) error
	SyncAccounts(ctx context.Context, id uuid.UUID) (*bankingapp.SyncResult, error)
	SyncTransactions(ctx context.Context, id uuid.UUID, from, to *time.Time) (*bankingapp.SyncResult, error)
	SyncExchangeRates(ctx context.Context, id uuid.UUID) (*bankingapp.SyncResult, error)
	SyncAll(ctx context.Context, id uuid.UUID) (*bankingapp.SyncResult, error)
}

// RunHistory lists the run logs of a connector or source
type RunHistory interface {
	History(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID, limit int) ([]runlog.RunLog, error)
}

// BankConnectorHandler handles bank connector endpoints
type BankConnectorHandler struct {
	BaseHandler
	connectors BankConnectorService
	runs       RunHistory
}

// NewBankConnectorHandler creates a new BankConnectorHandler
func NewBankConnectorHandler(connectors BankConnectorService, runs RunHistory) *BankConnectorHandler {
	return &BankConnectorHandler{connectors: connectors, runs: runs}
}

// BankConnectorResponse is the API view of a connector. Credentials and tokens are never exposed.
type BankConnectorResponse struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	BankType        string     `json:"bank_type"`
	BankName        string     `json:"bank_name"`
	SandboxMode     bool       `json:"sandbox_mode"`
	State           string     `json:"state"`
	LastError       string     `json:"last_error,omitempty"`
	LastSync        *time.Time `json:"last_sync,omitempty"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
	AutoSyncEnabled bool       `json:"auto_sync_enabled"`
	SyncInterval    int        `json:"sync_interval_minutes"`
}

func toBankConnectorResponse(c *banking.BankConnector) BankConnectorResponse {
	return BankConnectorResponse{
		ID:              c.ID,
		Name:            c.Name,
		BankType:        c.BankType.String(),
		BankName:        c.BankType.DisplayName(),
		SandboxMode:     c.SandboxMode,
		State:           c.State.String(),
		LastError:       c.LastError,
		LastSync:        c.LastSync,
		TokenExpiresAt:  c.TokenExpiresAt,
		AutoSyncEnabled: c.AutoSyncEnabled,
		SyncInterval:    c.SyncIntervalMinutes,
	}
}

// SyncConnectorRequest selects the sync action and, for transactions, the date window
type SyncConnectorRequest struct {
	Operation string `json:"operation" binding:"required,oneof=accounts transactions exchange_rates all" example:"transactions"`
	DateFrom  string `json:"date_from" binding:"omitempty,datetime=2006-01-02" example:"2024-01-01"`
	DateTo    string `json:"date_to" binding:"omitempty,datetime=2006-01-02" example:"2024-01-31"`
}

// window parses the optional date bounds
func (r SyncConnectorRequest) window() (from, to *time.Time, err error) {
	parse := func(s string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	if from, err = parse(r.DateFrom); err != nil {
		return nil, nil, err
	}
	if to, err = parse(r.DateTo); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// Connect godoc
//
//	@Summary	Acquire a fresh token for the connector
//	@Tags		bank-connectors
//	@Param		id	path		string	true	"Connector ID"
//	@Success	200	{object}	APIResponse[BankConnectorResponse]
//	@Router		/bank-connectors/{id}/connect [post]
func (h *BankConnectorHandler) Connect(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	connector, err := h.connectors.Connect(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBankConnectorResponse(connector))
}

// Disconnect godoc
//
//	@Summary	Drop the connector's tokens
//	@Tags		bank-connectors
//	@Param		id	path		string	true	"Connector ID"
//	@Success	200	{object}	APIResponse[BankConnectorResponse]
//	@Router		/bank-connectors/{id}/disconnect [post]
func (h *BankConnectorHandler) Disconnect(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	connector, err := h.connectors.Disconnect(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBankConnectorResponse(connector))
}

// TestConnection checks that the connector can obtain a token
func (h *BankConnectorHandler) TestConnection(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.connectors.TestConnection(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"message": "Connection successful"})
}

// Sync godoc
//
//	@Summary	Run a sync action on the connector
//	@Tags		bank-connectors
//	@Param		id		path		string					true	"Connector ID"
//	@Param		request	body		SyncConnectorRequest	true	"Sync action"
//	@Success	200		{object}	APIResponse[bankingapp.SyncResult]
//	@Failure	409		{object}	ErrorResponse	"A sync is already running"
//	@Router		/bank-connectors/{id}/sync [post]
func (h *BankConnectorHandler) Sync(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req SyncConnectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	from, to, err := req.window()
	if err != nil {
		h.BadRequest(c, "Invalid date window")
		return
	}
	if from != nil && to != nil && from.After(*to) {
		h.BadRequest(c, "date_from is after date_to")
		return
	}

	ctx := c.Request.Context()
	var result *bankingapp.SyncResult
	switch req.Operation {
	case SyncOperationAccounts:
		result, err = h.connectors.SyncAccounts(ctx, id)
	case SyncOperationTransactions:
		result, err = h.connectors.SyncTransactions(ctx, id, from, to)
	case SyncOperationExchangeRates:
		result, err = h.connectors.SyncExchangeRates(ctx, id)
	default:
		result, err = h.connectors.SyncAll(ctx, id)
	}
	if err != nil {
		if result == nil {
			h.HandleError(c, err)
			return
		}
		h.HandleErrorWithData(c, err, result.Message, result)
		return
	}
	h.Success(c, result)
}

// Runs lists the most recent sync runs of the connector
func (h *BankConnectorHandler) Runs(c *gin.Context) {
	listRuns(&h.BaseHandler, c, h.runs, runlog.SourceKindBankConnector)
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

// DefaultRunHistoryLimit is used when no limit query parameter is given
const DefaultRunHistoryLimit = 20

// RunHistoryQuery bounds a run history listing
type RunHistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// RunLogResponse is the API view of a run log
type RunLogResponse struct {
	ID              uuid.UUID  `json:"id"`
	SourceKind      string     `json:"source_kind"`
	SourceID        uuid.UUID  `json:"source_id"`
	SourceName      string     `json:"source_name"`
	Operation       string     `json:"operation"`
	State           string     `json:"state"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Total           int        `json:"total"`
	Created         int        `json:"created"`
	Updated         int        `json:"updated"`
	Skipped         int        `json:"skipped"`
	Failed          int        `json:"failed"`
	ErrorDetails    string     `json:"error_details,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
}

func toRunLogResponse(r *runlog.RunLog) RunLogResponse {
	return RunLogResponse{
		ID:              r.ID,
		SourceKind:      string(r.SourceKind),
		SourceID:        r.SourceID,
		SourceName:      r.SourceName,
		Operation:       string(r.Operation),
		State:           string(r.State),
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Total:           r.Total,
		Created:         r.Created,
		Updated:         r.Updated,
		Skipped:         r.Skipped,
		Failed:          r.Failed,
		ErrorDetails:    r.ErrorDetails,
		DurationSeconds: r.DurationSeconds,
	}
}

func listRuns(h *BaseHandler, c *gin.Context, runs RunHistory, kind runlog.SourceKind) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var q RunHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = DefaultRunHistoryLimit
	}
	logs, err := runs.History(c.Request.Context(), kind, id, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]RunLogResponse, 0, len(logs))
	for i := range logs {
		items = append(items, toRunLogResponse(&logs[i]))
	}
	h.SuccessList(c, items, int64(len(items)), q.Limit)
}
