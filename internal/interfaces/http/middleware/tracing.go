// Package middleware provides HTTP middleware for the connectors API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxPathParamLength is the maximum length of a path parameter copied onto a span.
const MaxPathParamLength = 64

// idAttributes names the :id parameter by the resource it identifies
var idAttributes = map[string]string{
	"bank-connectors": "connector.id",
	"xml-sources":     "xml_source.id",
}

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
	// SkipPaths are served without a span
	SkipPaths []string
}

// DefaultTracingConfig traces everything but the health probe
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "connectors",
		Enabled:     true,
		SkipPaths:   []string{"/health"},
	}
}

// TracingWithConfig returns the otelgin middleware. Spans are named
// "METHOD route", e.g. "POST /api/v1/xml-sources/:id/import".
// Register SpanAttributes after it to enrich the span.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	return otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !skip[r.URL.Path]
	}))
}

// SpanAttributes tags the current span with the request id and the connector,
// feed source or webhook platform the route addresses
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(routeAttributes(c)...)
		}
		c.Next()
	}
}

func routeAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := GetRequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if platform := c.Param("platform"); platform != "" {
		attrs = append(attrs, attribute.String("qcommerce.platform", clip(platform)))
	}
	if id := c.Param("id"); id != "" {
		key, ok := idAttributes[routeResource(c.FullPath())]
		if !ok {
			key = "http.path_param.id"
		}
		attrs = append(attrs, attribute.String(key, clip(id)))
	}
	return attrs
}

func clip(v string) string {
	if len(v) > MaxPathParamLength {
		return v[:MaxPathParamLength]
	}
	return v
}

// SpanErrorMarker marks the span as failed when the handler answered 4xx or 5xx.
// Place it after TracingWithConfig.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			span.SetAttributes(attribute.String("gin.errors", errs.String()))
		}
	}
}
