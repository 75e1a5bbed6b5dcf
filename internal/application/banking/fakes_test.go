package banking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	runlogapp "github.com/mobilsoft/connectors/internal/application/runlog"
	"github.com/mobilsoft/connectors/internal/infrastructure/bank"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
	"github.com/mobilsoft/connectors/internal/infrastructure/oauth"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memoryStore struct {
	mu         sync.Mutex
	connectors map[uuid.UUID]banking.BankConnector
	accounts   map[uuid.UUID]banking.BankAccount
	lines      map[string]banking.StatementLine
	rates      map[string]banking.CurrencyRate
	partners   []banking.Partner
	runs       map[uuid.UUID]runlog.RunLog
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		connectors: make(map[uuid.UUID]banking.BankConnector),
		accounts:   make(map[uuid.UUID]banking.BankAccount),
		lines:      make(map[string]banking.StatementLine),
		rates:      make(map[string]banking.CurrencyRate),
		runs:       make(map[uuid.UUID]runlog.RunLog),
	}
}

func (m *memoryStore) repositories() banking.Repositories {
	return banking.Repositories{
		Connectors: memoryConnectors{m},
		Accounts:   memoryAccounts{m},
		Lines:      memoryLines{m},
		Rates:      memoryRates{m},
		Partners:   memoryPartners{m},
	}
}

func (m *memoryStore) connector(id uuid.UUID) banking.BankConnector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectors[id]
}

func (m *memoryStore) linesOf(accountID uuid.UUID) []banking.StatementLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []banking.StatementLine
	for _, l := range m.lines {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out
}

func (m *memoryStore) lastRun() runlog.RunLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last runlog.RunLog
	for _, r := range m.runs {
		if r.StartTime.After(last.StartTime) || last.ID == uuid.Nil {
			last = r
		}
	}
	return last
}

type memoryConnectors struct{ m *memoryStore }

func (r memoryConnectors) FindByID(_ context.Context, id uuid.UUID) (*banking.BankConnector, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.connectors[id]
	if !ok {
		return nil, banking.ErrConnectorNotFound
	}
	return &c, nil
}

func (r memoryConnectors) FindAutoSync(_ context.Context) ([]banking.BankConnector, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []banking.BankConnector
	for _, c := range r.m.connectors {
		if c.AutoSyncEnabled && c.State == banking.ConnectorStateConnected {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memoryConnectors) Save(_ context.Context, c *banking.BankConnector) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.connectors[c.ID] = *c
	return nil
}

type memoryAccounts struct{ m *memoryStore }

func (r memoryAccounts) FindByConnector(_ context.Context, connectorID uuid.UUID) ([]banking.BankAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []banking.BankAccount
	for _, a := range r.m.accounts {
		if a.ConnectorID == connectorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccNumber < out[j].AccNumber })
	return out, nil
}

func (r memoryAccounts) FindByNumber(_ context.Context, connectorID uuid.UUID, accNumber string) (*banking.BankAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.accounts {
		if a.ConnectorID == connectorID && a.AccNumber == accNumber {
			return &a, nil
		}
	}
	return nil, banking.ErrAccountNotFound
}

func (r memoryAccounts) Save(_ context.Context, a *banking.BankAccount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.accounts[a.ID] = *a
	return nil
}

type memoryLines struct{ m *memoryStore }

func (r memoryLines) ExistsByImportRef(_ context.Context, ref string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.lines[ref]
	return ok, nil
}

func (r memoryLines) Create(_ context.Context, l *banking.StatementLine) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.lines[l.BankImportRef]; ok {
		return shared.NewIngestError(shared.ErrDuplicateIgnored, "create statement line", nil)
	}
	r.m.lines[l.BankImportRef] = *l
	return nil
}

func (r memoryLines) CountByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	return int64(len(r.m.linesOf(accountID))), nil
}

type memoryRates struct{ m *memoryStore }

func rateKey(currency string, date time.Time, source string) string {
	return currency + "|" + date.Format("2006-01-02") + "|" + source
}

func (r memoryRates) Upsert(_ context.Context, rate *banking.CurrencyRate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.rates[rateKey(rate.Currency, rate.EffectiveDate, rate.Source)] = *rate
	return nil
}

func (r memoryRates) FindByKey(_ context.Context, currency string, date time.Time, source string) (*banking.CurrencyRate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rate, ok := r.m.rates[rateKey(currency, date, source)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &rate, nil
}

type memoryPartners struct{ m *memoryStore }

func (r memoryPartners) filter(match func(p banking.Partner) bool) ([]banking.Partner, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []banking.Partner
	for _, p := range r.m.partners {
		if match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memoryPartners) FindByIBAN(_ context.Context, iban string) ([]banking.Partner, error) {
	return r.filter(func(p banking.Partner) bool {
		for _, i := range p.IBANs {
			if banking.NormalizeIBAN(i) == iban {
				return true
			}
		}
		return false
	})
}

func (r memoryPartners) FindByTaxID(_ context.Context, taxID string) ([]banking.Partner, error) {
	return r.filter(func(p banking.Partner) bool { return p.TaxID == taxID })
}

func (r memoryPartners) FindByExactName(_ context.Context, name string) ([]banking.Partner, error) {
	return r.filter(func(p banking.Partner) bool { return p.Name == name })
}

// memoryUnitOfWork hands the shared repositories to fn
type memoryUnitOfWork struct{ m *memoryStore }

func (u memoryUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos banking.Repositories) error) error {
	return fn(ctx, u.m.repositories())
}

type memoryRuns struct{ m *memoryStore }

func (r memoryRuns) Create(_ context.Context, run *runlog.RunLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.runs[run.ID] = *run
	return nil
}

func (r memoryRuns) Save(ctx context.Context, run *runlog.RunLog) error {
	return r.Create(ctx, run)
}

func (r memoryRuns) FindByID(_ context.Context, id uuid.UUID) (*runlog.RunLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	run, ok := r.m.runs[id]
	if !ok {
		return nil, runlog.ErrRunNotFound
	}
	return &run, nil
}

func (r memoryRuns) FindRunning(_ context.Context, kind runlog.SourceKind, sourceID uuid.UUID) (*runlog.RunLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, run := range r.m.runs {
		if run.SourceKind == kind && run.SourceID == sourceID && run.IsRunning() {
			return &run, nil
		}
	}
	return nil, nil
}

func (r memoryRuns) ListBySource(_ context.Context, kind runlog.SourceKind, sourceID uuid.UUID, _ int) ([]runlog.RunLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []runlog.RunLog
	for _, run := range r.m.runs {
		if run.SourceKind == kind && run.SourceID == sourceID {
			out = append(out, run)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Test environment: a mock GarantiBBVA API and the real adapter stack
// ---------------------------------------------------------------------------

type testEnv struct {
	store  *memoryStore
	tokens *TokenStore
	sync   *SyncService
	server *httptest.Server
}

func createMockBankServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()
	server := createMockBankServer(t, handler)

	cfg := httpclient.DefaultConfig()
	cfg.BackoffFactor = time.Millisecond
	session := httpclient.New(cfg)

	registry := bank.NewRegistry(bank.Endpoints{
		Garanti: &bank.GarantiConfig{
			ProductionURL: server.URL,
			SandboxURL:    server.URL,
			TokenPath:     "/oauth2/token",
			DefaultScope:  bank.GarantiDefaultScope,
		},
	}, zap.NewNop())

	store := newMemoryStore()
	tokens := NewTokenStore(TokenStoreConfig{
		Connectors: memoryConnectors{store},
		Adapters:   registry,
		Exchanger:  oauth.NewExchanger(session),
		Logger:     zap.NewNop(),
	})
	runs := runlogapp.NewService(runlogapp.ServiceConfig{Repo: memoryRuns{store}, Logger: zap.NewNop()})
	svc := NewSyncService(SyncServiceConfig{
		Connectors: memoryConnectors{store},
		UnitOfWork: memoryUnitOfWork{store},
		Runs:       runs,
		Adapters:   registry,
		Callers:    bank.NewClient(session, zap.NewNop()),
		Tokens:     tokens,
		Logger:     zap.NewNop(),
	})
	return &testEnv{store: store, tokens: tokens, sync: svc, server: server}
}

// addConnector stores a connected GarantiBBVA connector whose token expires at expiresAt
func (e *testEnv) addConnector(t *testing.T, expiresAt time.Time) *banking.BankConnector {
	t.Helper()
	c, err := banking.NewBankConnector("Garanti Main", banking.BankTypeGarantiBBVA, "client-1", "secret-1", false)
	require.NoError(t, err)
	c.ApplyToken("cached-token", "", expiresAt, time.Now())
	require.NoError(t, memoryConnectors{e.store}.Save(context.Background(), c))
	return c
}

// addAccount stores a managed account with an external id
func (e *testEnv) addAccount(t *testing.T, connectorID uuid.UUID, number, externalID string) *banking.BankAccount {
	t.Helper()
	a, err := banking.NewBankAccount(connectorID, banking.RemoteAccount{AccountID: externalID, AccountNumber: number})
	require.NoError(t, err)
	require.NoError(t, memoryAccounts{e.store}.Save(context.Background(), a))
	return a
}
