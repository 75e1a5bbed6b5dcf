package feedimport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	runlogapp "github.com/mobilsoft/connectors/internal/application/runlog"
	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
	"github.com/mobilsoft/connectors/internal/infrastructure/storage"
	"github.com/mobilsoft/connectors/internal/infrastructure/xmlfeed"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memorySources struct {
	mu      sync.Mutex
	sources map[uuid.UUID]feed.XMLProductSource
}

func newMemorySources() *memorySources {
	return &memorySources{sources: make(map[uuid.UUID]feed.XMLProductSource)}
}

func (m *memorySources) FindByID(_ context.Context, id uuid.UUID) (*feed.XMLProductSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, feed.ErrSourceNotFound
	}
	return &s, nil
}

func (m *memorySources) FindAutoSync(context.Context) ([]feed.XMLProductSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []feed.XMLProductSource
	for _, s := range m.sources {
		if s.AutoSync {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memorySources) Save(_ context.Context, source *feed.XMLProductSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source.ID] = *source
	return nil
}

func (m *memorySources) get(id uuid.UUID) feed.XMLProductSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources[id]
}

type memoryProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]feed.ProductRecord
}

func newMemoryProducts() *memoryProducts {
	return &memoryProducts{products: make(map[uuid.UUID]feed.ProductRecord)}
}

func (m *memoryProducts) find(match func(p feed.ProductRecord) bool) (*feed.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if match(p) {
			return &p, nil
		}
	}
	return nil, feed.ErrProductNotFound
}

func (m *memoryProducts) FindByBarcode(_ context.Context, barcode string) (*feed.ProductRecord, error) {
	return m.find(func(p feed.ProductRecord) bool { return p.Barcode == barcode })
}

func (m *memoryProducts) FindBySKU(_ context.Context, sku string) (*feed.ProductRecord, error) {
	return m.find(func(p feed.ProductRecord) bool { return p.SKU == sku })
}

func (m *memoryProducts) FindBySupplierSKU(_ context.Context, sourceID uuid.UUID, supplierSKU string) (*feed.ProductRecord, error) {
	return m.find(func(p feed.ProductRecord) bool {
		return p.SourceID != nil && *p.SourceID == sourceID && p.SupplierSKU == supplierSKU
	})
}

func (m *memoryProducts) Create(_ context.Context, product *feed.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = *product
	return nil
}

func (m *memoryProducts) Update(ctx context.Context, product *feed.ProductRecord) error {
	return m.Create(ctx, product)
}

func (m *memoryProducts) bySKU(t *testing.T, sku string) feed.ProductRecord {
	t.Helper()
	p, err := m.FindBySKU(context.Background(), sku)
	require.NoError(t, err, "product %s", sku)
	return *p
}

func (m *memoryProducts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products)
}

type memoryCategories struct {
	mu         sync.Mutex
	categories []feed.Category
	created    int
}

func (m *memoryCategories) FindChild(_ context.Context, parentID *uuid.UUID, name string) (*feed.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		sameParent := (c.ParentID == nil && parentID == nil) ||
			(c.ParentID != nil && parentID != nil && *c.ParentID == *parentID)
		if sameParent && strings.EqualFold(c.Name, name) {
			return &c, nil
		}
	}
	return nil, feed.ErrCategoryNotFound
}

func (m *memoryCategories) Create(_ context.Context, category *feed.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append(m.categories, *category)
	m.created++
	return nil
}

// seed stores a category path and returns its leaf
func (m *memoryCategories) seed(levels ...string) feed.Category {
	var parent *feed.Category
	for _, name := range levels {
		c := feed.Category{ID: uuid.New(), Name: name, CompleteName: completeName(parent, name)}
		if parent != nil {
			id := parent.ID
			c.ParentID = &id
		}
		m.mu.Lock()
		m.categories = append(m.categories, c)
		m.mu.Unlock()
		parent = &c
	}
	return *parent
}

func (m *memoryCategories) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.categories))
	for _, c := range m.categories {
		names = append(names, c.CompleteName)
	}
	return names
}

type memoryRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]runlog.RunLog
}

func (r *memoryRuns) Create(_ context.Context, run *runlog.RunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[uuid.UUID]runlog.RunLog)
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRuns) Save(ctx context.Context, run *runlog.RunLog) error {
	return r.Create(ctx, run)
}

func (r *memoryRuns) FindByID(_ context.Context, id uuid.UUID) (*runlog.RunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, runlog.ErrRunNotFound
	}
	return &run, nil
}

func (r *memoryRuns) FindRunning(_ context.Context, kind runlog.SourceKind, sourceID uuid.UUID) (*runlog.RunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.SourceKind == kind && run.SourceID == sourceID && run.IsRunning() {
			return &run, nil
		}
	}
	return nil, nil
}

func (r *memoryRuns) ListBySource(_ context.Context, kind runlog.SourceKind, sourceID uuid.UUID, _ int) ([]runlog.RunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []runlog.RunLog
	for _, run := range r.runs {
		if run.SourceKind == kind && run.SourceID == sourceID {
			out = append(out, run)
		}
	}
	return out, nil
}

var (
	_ feed.SourceRepository  = (*memorySources)(nil)
	_ feed.ProductRepository = (*memoryProducts)(nil)
	_ runlog.Repository      = (*memoryRuns)(nil)
)

// ---------------------------------------------------------------------------
// Test environment: a mock supplier serving a feed and the real fetch stack
// ---------------------------------------------------------------------------

type testEnv struct {
	sources    *memorySources
	products   *memoryProducts
	categories *memoryCategories
	runs       *memoryRuns
	documents  *storage.MemoryDocumentStore
	service    *ImportService
	server     *httptest.Server
}

func createMockFeedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// serveFeed returns a handler that answers every request with body as XML
func serveFeed(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()
	server := createMockFeedServer(t, handler)

	cfg := httpclient.DefaultConfig()
	cfg.BackoffFactor = time.Millisecond
	cfg.MaxRetries = 0
	session := httpclient.New(cfg)

	env := &testEnv{
		sources:    newMemorySources(),
		products:   newMemoryProducts(),
		categories: &memoryCategories{},
		runs:       &memoryRuns{},
		documents:  storage.NewMemoryDocumentStore(),
		server:     server,
	}
	runs := runlogapp.NewService(runlogapp.ServiceConfig{Repo: env.runs, Logger: zap.NewNop()})
	env.service = NewImportService(ImportServiceConfig{
		Sources:    env.sources,
		Products:   env.products,
		Categories: env.categories,
		Fetcher:    xmlfeed.NewFetcher(session, env.documents, zap.NewNop()),
		Documents:  env.documents,
		Runs:       runs,
		Logger:     zap.NewNop(),
	})
	return env
}

// addSource registers an active tsoft-template source reading the mock server
func (e *testEnv) addSource(t *testing.T) *feed.XMLProductSource {
	t.Helper()
	source, err := feed.NewXMLProductSource("Supplier A", e.server.URL+"/feed.xml")
	require.NoError(t, err)
	source.Template = feed.TemplateTsoft
	source.Activate(time.Now())
	require.NoError(t, e.sources.Save(context.Background(), source))
	return source
}
