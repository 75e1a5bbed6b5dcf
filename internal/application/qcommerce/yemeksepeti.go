package qcommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/infrastructure/scheduler"
)

// YemeksepetiSignatureHeader carries the hex HMAC-SHA256 of the body
const YemeksepetiSignatureHeader = "X-Yemeksepeti-Signature"

var yemeksepetiEventTypes = map[string]string{
	"ORDER_CREATED":   qcommerce.EventOrderCreated,
	"ORDER_CANCELLED": qcommerce.EventOrderCancelled,
	"ORDER_UPDATED":   qcommerce.EventOrderUpdated,
}

type yemeksepetiPayload struct {
	EventID string `json:"eventId"`
	Type    string `json:"type"`
	Order   struct {
		Code string `json:"code"`
	} `json:"order"`
}

// YemeksepetiHandler handles Yemeksepeti deliveries
type YemeksepetiHandler struct {
	jobs orderJobs
}

// NewYemeksepetiHandler creates a Yemeksepeti handler queueing order syncs on submitter
func NewYemeksepetiHandler(submitter scheduler.Submitter, logger *zap.Logger) *YemeksepetiHandler {
	return &YemeksepetiHandler{jobs: newOrderJobs(submitter, logger)}
}

var _ qcommerce.EventHandler = (*YemeksepetiHandler)(nil)

func (h *YemeksepetiHandler) Platform() qcommerce.PlatformType {
	return qcommerce.PlatformYemeksepeti
}

func (h *YemeksepetiHandler) VerifySignature(secret string, headers http.Header, body []byte) error {
	return verifyHMAC(secret, headers, YemeksepetiSignatureHeader, body)
}

func (h *YemeksepetiHandler) Decode(body []byte) (*qcommerce.WebhookEvent, error) {
	var p yemeksepetiPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, malformed(err)
	}
	eventType, ok := yemeksepetiEventTypes[strings.ToUpper(p.Type)]
	if !ok {
		return nil, unsupported(p.Type)
	}
	if strings.TrimSpace(p.EventID) == "" {
		return nil, qcommerce.ErrMissingEventID
	}
	return &qcommerce.WebhookEvent{
		EventID:   p.EventID,
		EventType: eventType,
		OrderID:   p.Order.Code,
		Payload:   json.RawMessage(body),
	}, nil
}

func (h *YemeksepetiHandler) HandleEvent(ctx context.Context, channel *qcommerce.Channel, event *qcommerce.WebhookEvent) (map[string]any, error) {
	return h.jobs.enqueue(ctx, channel, event)
}
