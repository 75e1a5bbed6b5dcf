package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IngestMetrics holds the instruments of the bank, feed and webhook pipelines.
// A nil *IngestMetrics records nothing.
type IngestMetrics struct {
	statementLines metric.Int64Counter
	tokenRefreshes metric.Int64Counter
	feedRecords    metric.Int64Counter
	feedDuration   metric.Float64Histogram
	webhookEvents  metric.Int64Counter
	runs           metric.Int64Counter
}

// NewIngestMetrics registers the instruments on meter
func NewIngestMetrics(meter metric.Meter) (*IngestMetrics, error) {
	m := &IngestMetrics{}
	var err error

	if m.statementLines, err = meter.Int64Counter("bank_sync_lines_total",
		metric.WithDescription("Bank statement lines processed by outcome"),
		metric.WithUnit("{line}"),
	); err != nil {
		return nil, err
	}
	if m.tokenRefreshes, err = meter.Int64Counter("bank_token_refresh_total",
		metric.WithDescription("OAuth2 token acquisitions by result"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.feedRecords, err = meter.Int64Counter("feed_import_records_total",
		metric.WithDescription("Feed records reconciled by outcome"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, err
	}
	if m.feedDuration, err = meter.Float64Histogram("feed_import_duration_seconds",
		metric.WithDescription("Duration of feed import runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1800),
	); err != nil {
		return nil, err
	}
	if m.webhookEvents, err = meter.Int64Counter("webhook_events_total",
		metric.WithDescription("Webhook deliveries by platform and status"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("ingest_runs_total",
		metric.WithDescription("Finished pipeline runs by operation and state"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// StatementLine counts one bank line; outcome is created, duplicate or failed
func (m *IngestMetrics) StatementLine(ctx context.Context, bank, outcome string) {
	if m == nil {
		return
	}
	m.statementLines.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bank", bank),
		attribute.String("outcome", outcome),
	))
}

// TokenRefresh counts one token acquisition; result is success or failure
func (m *IngestMetrics) TokenRefresh(ctx context.Context, bank, result string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bank", bank),
		attribute.String("result", result),
	))
}

// FeedRecords adds n feed records with the given outcome
func (m *IngestMetrics) FeedRecords(ctx context.Context, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.feedRecords.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// FeedDuration records the wall time of one import run
func (m *IngestMetrics) FeedDuration(ctx context.Context, d time.Duration, state string) {
	if m == nil {
		return
	}
	m.feedDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("state", state)))
}

// WebhookEvent counts one delivery with its response status
func (m *IngestMetrics) WebhookEvent(ctx context.Context, platform, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("status", status),
	))
}

// Run counts a finished run
func (m *IngestMetrics) Run(ctx context.Context, operation, state string) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("state", state),
	))
}
