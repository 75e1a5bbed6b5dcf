// Package qcommerce handles webhook deliveries from quick-commerce platforms.
package qcommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

// DefaultDedupTTL is how long a processed event id is remembered
const DefaultDedupTTL = 72 * time.Hour

// Response statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WebhookResponse is the body returned to the platform
type WebhookResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Result  map[string]any `json:"result,omitempty"`

	// Retry asks the platform to redeliver the event later
	Retry bool `json:"-"`
}

func errorResponse(message string) *WebhookResponse {
	return &WebhookResponse{Status: StatusError, Message: message}
}

func retryResponse() *WebhookResponse {
	return &WebhookResponse{Status: StatusError, Message: "Temporarily unavailable, retry later", Retry: true}
}

// WebhookService authenticates, deduplicates and dispatches platform webhooks
type WebhookService struct {
	channels    qcommerce.ChannelRepository
	handlers    map[qcommerce.PlatformType]qcommerce.EventHandler
	idempotency shared.IdempotencyStore
	dedupTTL    time.Duration
	metrics     *telemetry.IngestMetrics
	now         func() time.Time
	logger      *zap.Logger
}

// WebhookServiceConfig contains the dependencies of WebhookService
type WebhookServiceConfig struct {
	Channels    qcommerce.ChannelRepository
	Handlers    []qcommerce.EventHandler
	Idempotency shared.IdempotencyStore
	DedupTTL    time.Duration
	Metrics     *telemetry.IngestMetrics
	Now         func() time.Time
	Logger      *zap.Logger
}

// NewWebhookService creates a webhook service
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	s := &WebhookService{
		channels:    cfg.Channels,
		handlers:    make(map[qcommerce.PlatformType]qcommerce.EventHandler, len(cfg.Handlers)),
		idempotency: cfg.Idempotency,
		dedupTTL:    cfg.DedupTTL,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
	for _, h := range cfg.Handlers {
		s.handlers[h.Platform()] = h
	}
	if s.dedupTTL <= 0 {
		s.dedupTTL = DefaultDedupTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Process handles one delivery. It never returns an error: every outcome,
// including rejected and malformed deliveries, is described by the response.
func (s *WebhookService) Process(ctx context.Context, platform string, headers http.Header, body []byte) *WebhookResponse {
	ctx, span := telemetry.StartServiceSpan(ctx, "WebhookService", "Process",
		attribute.String("platform", platform),
	)
	resp := s.process(ctx, qcommerce.PlatformType(platform), headers, body)
	s.metrics.WebhookEvent(ctx, platform, resp.Status)
	if resp.Status == StatusError {
		telemetry.End(span, errors.New(resp.Message))
	} else {
		telemetry.End(span, nil)
	}
	return resp
}

func (s *WebhookService) process(ctx context.Context, platform qcommerce.PlatformType, headers http.Header, body []byte) *WebhookResponse {
	s.logger.Info("Webhook received", zap.String("platform", platform.String()), zap.Int("bytes", len(body)))

	handler, ok := s.handlers[platform]
	if !ok {
		return errorResponse("Unknown platform")
	}

	channel, err := s.channels.FindActiveByPlatform(ctx, platform)
	if errors.Is(err, qcommerce.ErrChannelNotFound) {
		return errorResponse("Channel not found")
	}
	if err != nil {
		s.logger.Error("Failed to load channel", zap.String("platform", platform.String()), zap.Error(err))
		return errorResponse("Channel lookup failed")
	}

	if !channel.CanVerify() {
		s.logger.Warn("Rejecting webhook for channel without secret",
			zap.String("channel_id", channel.ID.String()),
		)
		return errorResponse("Webhook secret not configured")
	}
	if err := handler.VerifySignature(channel.WebhookSecret, headers, body); err != nil {
		s.logger.Warn("Webhook signature rejected",
			zap.String("platform", platform.String()),
			zap.Error(err),
		)
		return errorResponse("Invalid signature")
	}

	event, err := handler.Decode(body)
	switch {
	case errors.Is(err, qcommerce.ErrUnsupportedEvent):
		s.logger.Debug("Ignoring unsupported webhook event", zap.String("platform", platform.String()), zap.Error(err))
		return &WebhookResponse{Status: StatusSuccess, Message: "Event ignored", Result: map[string]any{"ignored": true}}
	case err != nil:
		s.logger.Warn("Malformed webhook payload", zap.String("platform", platform.String()), zap.Error(err))
		return errorResponse("Malformed payload")
	}
	event.Platform = platform
	event.ReceivedAt = s.now()

	key := event.DedupKey()
	fresh, err := s.idempotency.MarkProcessed(ctx, key, s.dedupTTL)
	if err != nil {
		s.logger.Error("Idempotency store unavailable", zap.String("event", key), zap.Error(err))
		return retryResponse()
	}
	if !fresh {
		s.logger.Info("Duplicate webhook delivery", zap.String("event", key))
		return &WebhookResponse{
			Status:  StatusSuccess,
			Message: "Duplicate event",
			Result:  map[string]any{"duplicate": true, "event_id": event.EventID},
		}
	}

	result, err := handler.HandleEvent(ctx, channel, event)
	if err != nil {
		// let the platform's redelivery be handled again
		if rerr := s.idempotency.Release(ctx, key); rerr != nil {
			s.logger.Error("Failed to release event id", zap.String("event", key), zap.Error(rerr))
		}
		s.logger.Error("Webhook handling failed",
			zap.String("event", key),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		return retryResponse()
	}

	s.logger.Info("Webhook processed",
		zap.String("event", key),
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID),
	)
	return &WebhookResponse{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Webhook processed for %s", platform),
		Result:  result,
	}
}
