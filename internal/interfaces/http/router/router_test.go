package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	bankingapp "github.com/mobilsoft/connectors/internal/application/banking"
	"github.com/mobilsoft/connectors/internal/application/feedexport"
	"github.com/mobilsoft/connectors/internal/application/feedimport"
	qcommerceapp "github.com/mobilsoft/connectors/internal/application/qcommerce"
	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/interfaces/http/handler"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api/v1", r.BasePath())

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouterSetup_RootAndVersioned(t *testing.T) {
	engine := gin.New()

	runs := NewGroup("xml-sources", "/xml-sources").
		GET("/:id/runs", func(c *gin.Context) { c.String(http.StatusOK, "runs "+c.Param("id")) })
	health := NewGroup("system", "").
		GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })

	NewRouter(engine).API(runs).Root(health).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/xml-sources/7/runs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "runs 7", w.Body.String())

	w = serve(engine, http.MethodGet, "/health")
	assert.Equal(t, "up", w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/xml-sources/7/runs").Code)
}

func TestGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewGroup("bank-connectors", "/bank-connectors")
		assert.Equal(t, "bank-connectors", g.Name())
		assert.Equal(t, "/bank-connectors", g.Prefix())
	})

	t.Run("middleware covers routes and children", func(t *testing.T) {
		engine := gin.New()
		g := NewGroup("bank-connectors", "/bank-connectors").Use(func(c *gin.Context) {
			c.Header("X-Group", "bank")
			c.Next()
		})
		g.POST("/:id/sync", func(c *gin.Context) { c.Status(http.StatusAccepted) })
		g.Group("runs", "/:id/runs").GET("", func(c *gin.Context) { c.Status(http.StatusOK) })

		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodPost, "/api/v1/bank-connectors/1/sync")
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "bank", w.Header().Get("X-Group"))

		w = serve(engine, http.MethodGet, "/api/v1/bank-connectors/1/runs")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bank", w.Header().Get("X-Group"))
	})

	t.Run("handle accepts any method", func(t *testing.T) {
		engine := gin.New()
		NewGroup("xml-sources", "/xml-sources").
			Handle(http.MethodDelete, "/:id/runs", func(c *gin.Context) { c.Status(http.StatusNoContent) }).
			RegisterRoutes(&engine.RouterGroup)

		assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodDelete, "/xml-sources/1/runs").Code)
	})
}

// ---------------------------------------------------------------------------
// Mounted connector routes
// ---------------------------------------------------------------------------

type stubWebhooks struct{ platforms []string }

func (s *stubWebhooks) Process(_ context.Context, platform string, _ http.Header, _ []byte) *qcommerceapp.WebhookResponse {
	s.platforms = append(s.platforms, platform)
	return &qcommerceapp.WebhookResponse{Status: qcommerceapp.StatusSuccess, Message: "Webhook processed for " + platform}
}

type stubConnectors struct{}

func (stubConnectors) Connect(context.Context, uuid.UUID) (*banking.BankConnector, error) {
	return nil, banking.ErrConnectorNotFound
}
func (stubConnectors) Disconnect(context.Context, uuid.UUID) (*banking.BankConnector, error) {
	return nil, banking.ErrConnectorNotFound
}
func (stubConnectors) TestConnection(context.Context, uuid.UUID) error {
	return banking.ErrConnectorNotFound
}
func (stubConnectors) SyncAccounts(context.Context, uuid.UUID) (*bankingapp.SyncResult, error) {
	return nil, banking.ErrConnectorNotFound
}
func (stubConnectors) SyncTransactions(context.Context, uuid.UUID, *time.Time, *time.Time) (*bankingapp.SyncResult, error) {
	return nil, banking.ErrConnectorNotFound
}
func (stubConnectors) SyncExchangeRates(context.Context, uuid.UUID) (*bankingapp.SyncResult, error) {
	return nil, banking.ErrConnectorNotFound
}
func (stubConnectors) SyncAll(context.Context, uuid.UUID) (*bankingapp.SyncResult, error) {
	return nil, banking.ErrConnectorNotFound
}

type stubImports struct{}

func (stubImports) Run(context.Context, uuid.UUID) (*runlog.RunLog, error) {
	return nil, feed.ErrSourceNotFound
}
func (stubImports) Preview(context.Context, uuid.UUID, int) ([]feedimport.PreviewItem, error) {
	return nil, feed.ErrSourceNotFound
}
func (stubImports) TestConnection(context.Context, uuid.UUID) (*feedimport.ConnectionReport, error) {
	return nil, feed.ErrSourceNotFound
}
func (stubImports) UploadDocument(context.Context, uuid.UUID, string, []byte) (*feed.XMLProductSource, error) {
	return nil, feed.ErrSourceNotFound
}

type stubExports struct{}

func (stubExports) Render(context.Context, string, string) (*feedexport.Feed, error) {
	return nil, feed.ErrExportNotFound
}
func (stubExports) Describe(context.Context, string, string) (*feedexport.Info, error) {
	return nil, feed.ErrExportNotFound
}

type stubRuns struct{}

func (stubRuns) History(context.Context, runlog.SourceKind, uuid.UUID, int) ([]runlog.RunLog, error) {
	return nil, nil
}

func mountedEngine(webhooks *stubWebhooks) *gin.Engine {
	engine := gin.New()
	Mount(NewRouter(engine), Handlers{
		System:         handler.NewSystemHandler("connectors", "test", nil),
		Webhooks:       handler.NewWebhookHandler(webhooks),
		BankConnectors: handler.NewBankConnectorHandler(stubConnectors{}, stubRuns{}),
		XMLSources:     handler.NewXMLSourceHandler(stubImports{}, stubRuns{}),
		Exports:        handler.NewExportHandler(stubExports{}),
	}).Setup()
	return engine
}

func TestMount_Routes(t *testing.T) {
	engine := mountedEngine(&stubWebhooks{})
	id := uuid.NewString()

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{"GET", "/health", "", http.StatusOK},
		{"GET", "/api/v1/system/info", "", http.StatusOK},
		{"POST", "/webhook/qcommerce/getir", "{}", http.StatusOK},
		{"POST", "/webhook/vigo", "{}", http.StatusOK},
		{"POST", "/api/v1/bank-connectors/" + id + "/connect", "", http.StatusNotFound},
		{"POST", "/api/v1/bank-connectors/" + id + "/disconnect", "", http.StatusNotFound},
		{"POST", "/api/v1/bank-connectors/" + id + "/test", "", http.StatusNotFound},
		{"POST", "/api/v1/bank-connectors/" + id + "/sync", `{"operation":"accounts"}`, http.StatusNotFound},
		{"GET", "/api/v1/bank-connectors/" + id + "/runs", "", http.StatusOK},
		{"POST", "/api/v1/xml-sources/" + id + "/import", "", http.StatusNotFound},
		{"GET", "/api/v1/xml-sources/" + id + "/preview", "", http.StatusNotFound},
		{"POST", "/api/v1/xml-sources/" + id + "/test", "", http.StatusNotFound},
		{"GET", "/api/v1/xml-sources/" + id + "/runs", "", http.StatusOK},
		{"POST", "/api/v1/xml-sources/not-a-uuid/import", "", http.StatusBadRequest},
		{"GET", "/xml/export/abc", "", http.StatusUnauthorized},
		{"GET", "/xml/export/abc/info", "", http.StatusUnauthorized},
		{"GET", "/api/v1/xml/export/abc", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestMount_WebhookPlatformParam(t *testing.T) {
	webhooks := &stubWebhooks{}
	engine := mountedEngine(webhooks)

	for _, path := range []string{"/webhook/qcommerce/getir", "/webhook/yemeksepeti"} {
		req := httptest.NewRequest("POST", path, strings.NewReader("{}"))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, []string{"getir", "yemeksepeti"}, webhooks.platforms)
}

func TestMount_WebhookBodyLimit(t *testing.T) {
	webhooks := &stubWebhooks{}
	engine := mountedEngine(webhooks)

	body := bytes.Repeat([]byte("x"), handler.MaxWebhookPayloadSize+1)
	req := httptest.NewRequest("POST", "/webhook/qcommerce/getir", bytes.NewReader(body))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "Payload too large")
	assert.Empty(t, webhooks.platforms)
}

func TestMount_WebhookRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	defer limiter.Close()

	webhooks := &stubWebhooks{}
	engine := gin.New()
	Mount(NewRouter(engine), Handlers{
		System:         handler.NewSystemHandler("connectors", "test", nil),
		Webhooks:       handler.NewWebhookHandler(webhooks),
		BankConnectors: handler.NewBankConnectorHandler(stubConnectors{}, stubRuns{}),
		XMLSources:     handler.NewXMLSourceHandler(stubImports{}, stubRuns{}),
		WebhookLimiter: limiter,
	}).Setup()

	send := func(path string) int {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("POST", path, strings.NewReader("{}")))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("/webhook/qcommerce/getir"))
	assert.Equal(t, http.StatusTooManyRequests, send("/webhook/qcommerce/getir"))
	assert.Equal(t, http.StatusOK, send("/webhook/qcommerce/vigo"))
	assert.Equal(t, []string{"getir", "vigo"}, webhooks.platforms)
}
