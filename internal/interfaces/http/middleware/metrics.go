package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

// Metric attribute keys
const (
	attrHTTPMethod     = "http.request.method"
	attrHTTPRoute      = "http.route"
	attrHTTPStatusCode = "http.response.status_code"
	attrPlatform       = "platform"
)

// httpDurationBuckets are latency boundaries in seconds. Feed imports run
// inline with the request so the tail goes up to two minutes.
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider is the OpenTelemetry meter provider.
	MeterProvider *telemetry.MeterProvider
	// Enabled controls whether metrics collection is active.
	Enabled bool
}

// httpMetrics holds all HTTP-related metrics instruments.
type httpMetrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestSize     metric.Int64Histogram
	responseSize    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error

	if m.requestTotal, err = meter.Int64Counter("http_server_request_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.requestDuration, err = meter.Float64Histogram("http_server_request_duration_seconds",
		metric.WithDescription("HTTP request latency distribution in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...),
	); err != nil {
		return nil, err
	}
	if m.requestSize, err = meter.Int64Histogram("http_server_request_size_bytes",
		metric.WithDescription("HTTP request body size distribution in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.responseSize, err = meter.Int64Histogram("http_server_response_size_bytes",
		metric.WithDescription("HTTP response body size distribution in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.activeRequests, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// HTTPMetrics returns a Gin middleware that collects HTTP metrics.
// This middleware tracks:
// - http_server_request_total: request count by method, route, status and webhook platform
// - http_server_request_duration_seconds: latency histogram by method and route
// - http_server_request_size_bytes / http_server_response_size_bytes: body sizes
// - http_server_active_requests: in-flight requests
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter returns HTTP metrics middleware using an existing meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled || meter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := c.Request.ContentLength

		metrics.activeRequests.Add(ctx, 1)
		c.Next()
		metrics.activeRequests.Add(ctx, -1)

		recordHTTPMetrics(ctx, metrics, requestInfo{
			method:       c.Request.Method,
			route:        getRoutePattern(c),
			platform:     c.Param("platform"),
			statusCode:   c.Writer.Status(),
			duration:     time.Since(start),
			requestSize:  requestSize,
			responseSize: c.Writer.Size(),
		})
	}
}

type requestInfo struct {
	method       string
	route        string
	platform     string
	statusCode   int
	duration     time.Duration
	requestSize  int64
	responseSize int
}

func recordHTTPMetrics(ctx context.Context, metrics *httpMetrics, info requestInfo) {
	baseAttrs := []attribute.KeyValue{
		attribute.String(attrHTTPMethod, info.method),
		attribute.String(attrHTTPRoute, info.route),
	}

	requestAttrs := append([]attribute.KeyValue{attribute.Int(attrHTTPStatusCode, info.statusCode)}, baseAttrs...)
	if info.platform != "" {
		requestAttrs = append(requestAttrs, attribute.String(attrPlatform, info.platform))
	}
	metrics.requestTotal.Add(ctx, 1, metric.WithAttributes(requestAttrs...))

	metrics.requestDuration.Record(ctx, info.duration.Seconds(), metric.WithAttributes(baseAttrs...))
	if info.requestSize > 0 {
		metrics.requestSize.Record(ctx, info.requestSize, metric.WithAttributes(baseAttrs...))
	}
	if info.responseSize > 0 {
		metrics.responseSize.Record(ctx, int64(info.responseSize), metric.WithAttributes(baseAttrs...))
	}
}

// getRoutePattern returns the matched route pattern (e.g. "/api/v1/xml-sources/:id")
// so raw ids never become label values.
func getRoutePattern(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return "unknown"
	}
	return route
}
