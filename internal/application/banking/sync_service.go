package banking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

// DefaultSyncWindow is the transaction window used when the caller gives no start date
const DefaultSyncWindow = 30 * 24 * time.Hour

// RunTracker opens and closes run logs; *runlog.Service from the application layer implements it
type RunTracker interface {
	Begin(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID, sourceName string, op runlog.Operation) (*runlog.RunLog, error)
	Complete(ctx context.Context, run *runlog.RunLog) error
	Fail(ctx context.Context, run *runlog.RunLog, cause error) error
}

// SyncResult is the user-visible outcome of a sync action
type SyncResult struct {
	Operation runlog.Operation `json:"operation"`
	RunID     *uuid.UUID       `json:"run_id,omitempty"`
	Count     int              `json:"count"`
	Created   int              `json:"created"`
	Updated   int              `json:"updated"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Errors    []string         `json:"errors,omitempty"`
	Message   string           `json:"message"`
	Steps     []*SyncResult    `json:"steps,omitempty"`
}

func (r *SyncResult) fill(run *runlog.RunLog) {
	id := run.ID
	r.RunID = &id
	r.Count = run.Total
	r.Created = run.Created
	r.Updated = run.Updated
	r.Skipped = run.Skipped
	r.Failed = run.Failed
}

// SyncService runs the account, transaction and exchange rate syncs of bank connectors
type SyncService struct {
	connectors banking.ConnectorRepository
	uow        banking.UnitOfWork
	runs       RunTracker
	adapters   *banking.AdapterRegistry
	callers    banking.CallerFactory
	tokens     banking.TokenSource
	ingest     *IngestService
	window     time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// SyncServiceConfig contains the dependencies of SyncService
type SyncServiceConfig struct {
	Connectors banking.ConnectorRepository
	UnitOfWork banking.UnitOfWork
	Runs       RunTracker
	Adapters   *banking.AdapterRegistry
	Callers    banking.CallerFactory
	Tokens     banking.TokenSource
	Ingest     *IngestService
	Window     time.Duration
	Now        func() time.Time
	Logger     *zap.Logger
}

// NewSyncService creates a sync service
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	s := &SyncService{
		connectors: cfg.Connectors,
		uow:        cfg.UnitOfWork,
		runs:       cfg.Runs,
		adapters:   cfg.Adapters,
		callers:    cfg.Callers,
		tokens:     cfg.Tokens,
		ingest:     cfg.Ingest,
		window:     cfg.Window,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if s.window <= 0 {
		s.window = DefaultSyncWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.ingest == nil {
		s.ingest = NewIngestService(IngestServiceConfig{Now: s.now, Logger: s.logger})
	}
	return s
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// Connect acquires a fresh token, moving the connector to connected
func (s *SyncService) Connect(ctx context.Context, id uuid.UUID) (*banking.BankConnector, error) {
	connector, err := s.connectors.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := connector.Validate(); err != nil {
		return nil, err
	}
	connector.InvalidateToken()
	if _, err := s.tokens.EnsureToken(ctx, connector); err != nil {
		return connector, err
	}
	s.logger.Info("Bank connector connected",
		zap.String("connector_id", connector.ID.String()),
		zap.String("bank", connector.BankType.String()),
	)
	return connector, nil
}

// Disconnect drops the connector's tokens
func (s *SyncService) Disconnect(ctx context.Context, id uuid.UUID) (*banking.BankConnector, error) {
	connector, err := s.connectors.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	connector.Disconnect(s.now())
	if err := s.connectors.Save(ctx, connector); err != nil {
		return nil, fmt.Errorf("save connector: %w", err)
	}
	s.logger.Info("Bank connector disconnected", zap.String("connector_id", connector.ID.String()))
	return connector, nil
}

// TestConnection checks that a valid token can be obtained, refreshing it when needed
func (s *SyncService) TestConnection(ctx context.Context, id uuid.UUID) error {
	connector, err := s.connectors.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := connector.CanSync(); err != nil {
		return err
	}
	_, err = s.tokens.EnsureToken(ctx, connector)
	return err
}

// ---------------------------------------------------------------------------
// Sync actions
// ---------------------------------------------------------------------------

// syncScope is what one action body works with, all bound to the action's transaction
type syncScope struct {
	connector *banking.BankConnector
	adapter   banking.BankAdapter
	caller    banking.Caller
	repos     banking.Repositories
	run       *runlog.RunLog
	result    *SyncResult
}

func (sc *syncScope) absorb(detail string) {
	sc.run.Note(detail)
	sc.result.Errors = append(sc.result.Errors, detail)
}

type syncAction func(ctx context.Context, sc *syncScope) error

// SyncAccounts upserts the accounts visible to the connector by account number
func (s *SyncService) SyncAccounts(ctx context.Context, id uuid.UUID) (*SyncResult, error) {
	return s.execute(ctx, id, runlog.OperationSyncAccounts, s.syncAccounts)
}

// SyncTransactions imports the transactions of every managed account between from and to.
// A nil from defaults to 30 days before today, a nil to defaults to today.
func (s *SyncService) SyncTransactions(ctx context.Context, id uuid.UUID, from, to *time.Time) (*SyncResult, error) {
	start, end, err := s.resolveWindow(from, to)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, id, runlog.OperationSyncTransactions, func(ctx context.Context, sc *syncScope) error {
		return s.syncTransactions(ctx, sc, start, end)
	})
}

// SyncExchangeRates stores today's buy rates published by the connector's bank
func (s *SyncService) SyncExchangeRates(ctx context.Context, id uuid.UUID) (*SyncResult, error) {
	return s.execute(ctx, id, runlog.OperationSyncExchangeRates, s.syncExchangeRates)
}

// SyncAll runs accounts, transactions and rates in order, each in its own transaction and run.
// A connector that is not connected first acquires a token.
func (s *SyncService) SyncAll(ctx context.Context, id uuid.UUID) (*SyncResult, error) {
	connector, err := s.connectors.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := connector.CanSync(); err != nil {
		return nil, err
	}
	if connector.State != banking.ConnectorStateConnected {
		if _, err := s.Connect(ctx, id); err != nil {
			return nil, err
		}
	}

	total := &SyncResult{Operation: runlog.OperationSyncAll}
	steps := []func() (*SyncResult, error){
		func() (*SyncResult, error) { return s.SyncAccounts(ctx, id) },
		func() (*SyncResult, error) { return s.SyncTransactions(ctx, id, nil, nil) },
		func() (*SyncResult, error) { return s.SyncExchangeRates(ctx, id) },
	}
	for _, step := range steps {
		res, err := step()
		if res != nil {
			total.add(res)
		}
		if err != nil {
			total.Message = "Sync failed: " + userMessage(err)
			return total, err
		}
	}
	total.Message = "All data synchronized successfully"
	return total, nil
}

func (r *SyncResult) add(step *SyncResult) {
	r.Steps = append(r.Steps, step)
	r.Count += step.Count
	r.Created += step.Created
	r.Updated += step.Updated
	r.Skipped += step.Skipped
	r.Failed += step.Failed
	r.Errors = append(r.Errors, step.Errors...)
}

// DueConnectors returns the connected auto-sync connectors whose interval elapsed at now
func (s *SyncService) DueConnectors(ctx context.Context, now time.Time) ([]banking.BankConnector, error) {
	candidates, err := s.connectors.FindAutoSync(ctx)
	if err != nil {
		return nil, err
	}
	due := candidates[:0]
	for _, c := range candidates {
		if c.IsDueForSync(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// SyncDueConnectors syncs the transactions of every due connector.
// A failing connector is logged and does not stop the others.
func (s *SyncService) SyncDueConnectors(ctx context.Context) (synced int, err error) {
	due, err := s.DueConnectors(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, c := range due {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if _, err := s.SyncTransactions(ctx, c.ID, nil, nil); err != nil {
			s.logger.Error("Auto-sync failed",
				zap.String("connector_id", c.ID.String()),
				zap.String("connector", c.Name),
				zap.Error(err),
			)
			continue
		}
		synced++
		s.logger.Info("Auto-sync successful", zap.String("connector", c.Name))
	}
	return synced, nil
}

// execute wraps an action: load and check the connector, open the run, run the
// body in one transaction, then close the run. Per-call failures abort the run
// and, unless recoverable, move the connector to error.
func (s *SyncService) execute(ctx context.Context, id uuid.UUID, op runlog.Operation, action syncAction) (*SyncResult, error) {
	connector, err := s.connectors.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := connector.CanSync(); err != nil {
		return nil, err
	}
	adapter, err := s.adapters.Get(connector.BankType)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "SyncService", string(op),
		attribute.String("bank", connector.BankType.String()),
		attribute.String("connector_id", connector.ID.String()),
	)
	result := &SyncResult{Operation: op}
	run, err := s.runs.Begin(ctx, runlog.SourceKindBankConnector, connector.ID, connector.Name, op)
	if err != nil {
		telemetry.End(span, err)
		return nil, err
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos banking.Repositories) error {
		// the token lives on the row, so read it inside the transaction that uses it
		current, err := repos.Connectors.FindByID(ctx, id)
		if err != nil {
			return err
		}
		sc := &syncScope{
			connector: current,
			adapter:   adapter,
			caller:    s.callers.NewCaller(current, adapter, s.tokens),
			repos:     repos,
			run:       run,
			result:    result,
		}
		if err := action(ctx, sc); err != nil {
			return err
		}
		current.MarkSynced(s.now())
		return repos.Connectors.Save(ctx, current)
	})
	result.fill(run)
	if err != nil {
		s.abort(ctx, id, run, err)
		result.Message = userMessage(err)
		telemetry.End(span, err)
		return result, err
	}

	if err := s.runs.Complete(ctx, run); err != nil {
		s.logger.Error("Failed to close run log", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	result.Message = fmt.Sprintf("%s finished: %s", op, run.Summary())
	telemetry.End(span, nil)
	return result, nil
}

func (s *SyncService) abort(ctx context.Context, connectorID uuid.UUID, run *runlog.RunLog, cause error) {
	if run.Created > 0 || run.Updated > 0 {
		run.Note("changes of this run were rolled back")
	}
	if err := s.runs.Fail(ctx, run, cause); err != nil {
		s.logger.Error("Failed to close run log", zap.String("run_id", run.ID.String()), zap.Error(err))
	}

	var tokenErr *banking.TokenError
	if errors.As(cause, &tokenErr) || shared.IsRecoverable(cause) {
		// the token store already recorded its failure; recoverable ones keep the state
		return
	}
	connector, err := s.connectors.FindByID(ctx, connectorID)
	if err != nil {
		s.logger.Error("Failed to reload connector", zap.String("connector_id", connectorID.String()), zap.Error(err))
		return
	}
	connector.MarkError(cause.Error(), s.now())
	if err := s.connectors.Save(ctx, connector); err != nil {
		s.logger.Error("Failed to persist connector error state", zap.String("connector_id", connectorID.String()), zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Action bodies
// ---------------------------------------------------------------------------

func (s *SyncService) syncAccounts(ctx context.Context, sc *syncScope) error {
	remotes, err := sc.adapter.ListAccounts(ctx, sc.connector, sc.caller)
	if err != nil {
		return err
	}

	for _, remote := range remotes {
		sc.run.AddTotal(1)
		if remote.DecodeErr != nil {
			sc.run.IncFailed(remote.DecodeErr.Error())
			continue
		}
		number := strings.TrimSpace(remote.AccountNumber)
		if number == "" {
			sc.run.IncSkipped()
			continue
		}

		existing, err := sc.repos.Accounts.FindByNumber(ctx, sc.connector.ID, number)
		switch {
		case errors.Is(err, banking.ErrAccountNotFound):
			account, err := banking.NewBankAccount(sc.connector.ID, remote)
			if err != nil {
				sc.run.IncFailed(fmt.Sprintf("account %s: %v", number, err))
				continue
			}
			if err := sc.repos.Accounts.Save(ctx, account); err != nil {
				return fmt.Errorf("save account %s: %w", number, err)
			}
			sc.run.IncCreated()
		case err != nil:
			return fmt.Errorf("find account %s: %w", number, err)
		default:
			existing.Refresh(remote)
			existing.Touch(s.now())
			if err := sc.repos.Accounts.Save(ctx, existing); err != nil {
				return fmt.Errorf("save account %s: %w", number, err)
			}
			sc.run.IncUpdated()
		}
	}
	return nil
}

func (s *SyncService) syncTransactions(ctx context.Context, sc *syncScope, from, to time.Time) error {
	accounts, err := sc.repos.Accounts.FindByConnector(ctx, sc.connector.ID)
	if err != nil {
		return fmt.Errorf("list managed accounts: %w", err)
	}

	for i := range accounts {
		account := &accounts[i]
		if !account.HasExternalID() {
			continue
		}
		err := s.syncAccountTransactions(ctx, sc, account, from, to)
		if err == nil {
			continue
		}

		var tokenErr *banking.TokenError
		if errors.As(err, &tokenErr) || ctx.Err() != nil {
			return err
		}
		s.logger.Warn("Account sync failed, continuing with next account",
			zap.String("connector_id", sc.connector.ID.String()),
			zap.String("account", account.AccNumber),
			zap.Error(err),
		)
		sc.absorb(fmt.Sprintf("account %s: %v", account.AccNumber, err))
	}
	return nil
}

func (s *SyncService) syncAccountTransactions(ctx context.Context, sc *syncScope, account *banking.BankAccount, from, to time.Time) error {
	txs, err := sc.adapter.ListTransactions(ctx, sc.connector, sc.caller, account.ExternalAccountID, from, to)
	if err != nil {
		return err
	}

	for _, tx := range txs {
		sc.run.AddTotal(1)
		if tx.DecodeErr != nil {
			sc.run.IncFailed(fmt.Sprintf("account %s: %v", account.AccNumber, tx.DecodeErr))
			continue
		}
		outcome, err := s.ingest.Ingest(ctx, sc.repos, sc.connector, account, tx)
		switch outcome {
		case OutcomeCreated:
			sc.run.IncCreated()
		case OutcomeSkipped:
			sc.run.IncSkipped()
		default:
			sc.run.IncFailed(fmt.Sprintf("account %s tx %q: %v", account.AccNumber, tx.TxID, err))
		}
	}

	account.MarkSynced(s.now())
	return sc.repos.Accounts.Save(ctx, account)
}

func (s *SyncService) syncExchangeRates(ctx context.Context, sc *syncScope) error {
	remotes, err := sc.adapter.ListFXRates(ctx, sc.connector, sc.caller)
	if err != nil {
		return err
	}

	now := s.now()
	for _, remote := range remotes {
		sc.run.AddTotal(1)
		if remote.DecodeErr != nil {
			sc.run.IncFailed(remote.DecodeErr.Error())
			continue
		}
		rate, err := banking.NewBankCurrencyRate(sc.connector, remote, now)
		if err != nil {
			sc.run.IncSkipped()
			continue
		}

		_, findErr := sc.repos.Rates.FindByKey(ctx, rate.Currency, rate.EffectiveDate, rate.Source)
		if err := sc.repos.Rates.Upsert(ctx, rate); err != nil {
			return fmt.Errorf("store %s rate: %w", rate.Currency, err)
		}
		if errors.Is(findErr, shared.ErrNotFound) {
			sc.run.IncCreated()
		} else {
			sc.run.IncUpdated()
		}
	}
	return nil
}

// resolveWindow applies the defaults without widening explicit bounds
func (s *SyncService) resolveWindow(from, to *time.Time) (time.Time, time.Time, error) {
	today := truncateDay(s.now())
	end := today
	if to != nil {
		end = truncateDay(*to)
	}
	start := today.Add(-s.window)
	if from != nil {
		start = truncateDay(*from)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, shared.NewIngestError(shared.ErrConfig, "sync transactions", banking.ErrInvalidWindow)
	}
	return start, end, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// userMessage renders an action failure for a notification
func userMessage(err error) string {
	switch shared.KindOf(err) {
	case shared.ErrNetwork:
		if shared.IsRecoverable(err) {
			return "Bank unreachable, try later"
		}
		return "Bank service failed: " + err.Error()
	case shared.ErrRateLimit:
		return "Bank rate limit reached, try later"
	case shared.ErrAuth:
		return "Bank rejected the credentials: " + err.Error()
	case shared.ErrConfig:
		return "Connector configuration error: " + err.Error()
	}
	if errors.Is(err, runlog.ErrRunInProgress) {
		return "A sync is already running for this connector"
	}
	return err.Error()
}
