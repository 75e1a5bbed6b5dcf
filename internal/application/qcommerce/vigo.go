package qcommerce

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/infrastructure/scheduler"
)

type vigoPayload struct {
	Secret    string `json:"secret"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
}

// VigoHandler handles Vigo deliveries. Vigo sends the shared secret in the body.
type VigoHandler struct {
	jobs orderJobs
}

// NewVigoHandler creates a Vigo handler queueing order syncs on submitter
func NewVigoHandler(submitter scheduler.Submitter, logger *zap.Logger) *VigoHandler {
	return &VigoHandler{jobs: newOrderJobs(submitter, logger)}
}

var _ qcommerce.EventHandler = (*VigoHandler)(nil)

func (h *VigoHandler) Platform() qcommerce.PlatformType {
	return qcommerce.PlatformVigo
}

func (h *VigoHandler) VerifySignature(secret string, _ http.Header, body []byte) error {
	var p struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(body, &p); err != nil || p.Secret == "" {
		return qcommerce.ErrMissingSignature
	}
	if subtle.ConstantTimeCompare([]byte(p.Secret), []byte(secret)) != 1 {
		return qcommerce.ErrInvalidSignature
	}
	return nil
}

func (h *VigoHandler) Decode(body []byte) (*qcommerce.WebhookEvent, error) {
	var p vigoPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, malformed(err)
	}
	eventType := strings.ToLower(p.EventType)
	switch eventType {
	case qcommerce.EventOrderCreated, qcommerce.EventOrderCancelled, qcommerce.EventOrderUpdated:
	default:
		return nil, unsupported(p.EventType)
	}
	if strings.TrimSpace(p.EventID) == "" {
		return nil, qcommerce.ErrMissingEventID
	}
	return &qcommerce.WebhookEvent{
		EventID:   p.EventID,
		EventType: eventType,
		OrderID:   p.OrderID,
		Payload:   json.RawMessage(body),
	}, nil
}

func (h *VigoHandler) HandleEvent(ctx context.Context, channel *qcommerce.Channel, event *qcommerce.WebhookEvent) (map[string]any, error) {
	return h.jobs.enqueue(ctx, channel, event)
}
