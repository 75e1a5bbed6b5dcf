package router

import (
	"github.com/mobilsoft/connectors/internal/interfaces/http/handler"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

// uploadOverhead leaves room for the multipart envelope around an uploaded feed
const uploadOverhead = 1 << 20

// Handlers groups the HTTP handlers mounted by Mount
type Handlers struct {
	System         *handler.SystemHandler
	Webhooks       *handler.WebhookHandler
	BankConnectors *handler.BankConnectorHandler
	XMLSources     *handler.XMLSourceHandler
	Exports        *handler.ExportHandler

	// WebhookLimiter throttles webhook deliveries per platform and IP when set
	WebhookLimiter *middleware.RateLimiter
}

// Mount registers every connector route on r. Call r.Setup afterwards.
func Mount(r *Router, h Handlers) *Router {
	system := NewGroup("system", "")
	system.GET("/health", h.System.Health)
	r.Root(system)

	webhooks := NewGroup("webhooks", "/webhook").
		Use(middleware.BodyLimitWithReject(handler.MaxWebhookPayloadSize, handler.RejectOversizedWebhook))
	if h.WebhookLimiter != nil {
		webhooks.Use(middleware.RateLimitByKey(h.WebhookLimiter, middleware.WebhookRateLimitKey))
	}
	webhooks.POST("/qcommerce/:platform", h.Webhooks.HandleWebhook)
	webhooks.POST("/:platform", h.Webhooks.HandleWebhook)
	r.Root(webhooks)

	info := NewGroup("system", "/system")
	info.GET("/info", h.System.GetSystemInfo)
	r.API(info)

	banks := NewGroup("bank-connectors", "/bank-connectors")
	banks.POST("/:id/connect", h.BankConnectors.Connect).
		POST("/:id/disconnect", h.BankConnectors.Disconnect).
		POST("/:id/test", h.BankConnectors.TestConnection).
		POST("/:id/sync", h.BankConnectors.Sync).
		GET("/:id/runs", h.BankConnectors.Runs)
	r.API(banks)

	sources := NewGroup("xml-sources", "/xml-sources")
	sources.POST("/:id/import", h.XMLSources.Import).
		GET("/:id/preview", h.XMLSources.Preview).
		POST("/:id/test", h.XMLSources.TestConnection).
		POST("/:id/upload", middleware.BodyLimit(handler.MaxFeedUploadSize+uploadOverhead), h.XMLSources.Upload).
		GET("/:id/runs", h.XMLSources.Runs)
	r.API(sources)

	if h.Exports != nil {
		exports := NewGroup("xml-exports", "/xml/export")
		exports.GET("/:token", h.Exports.Export).
			GET("/:token/info", h.Exports.Info)
		r.Root(exports)
	}

	return r
}
