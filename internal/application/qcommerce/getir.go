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

// GetirSignatureHeader carries the hex HMAC-SHA256 of the body
const GetirSignatureHeader = "X-Getir-Signature"

var getirEventTypes = map[string]string{
	"newOrder":           qcommerce.EventOrderCreated,
	"orderCanceled":      qcommerce.EventOrderCancelled,
	"orderStatusChanged": qcommerce.EventOrderUpdated,
}

type getirPayload struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	FoodOrder struct {
		ID string `json:"id"`
	} `json:"foodOrder"`
}

// GetirHandler handles Getir deliveries
type GetirHandler struct {
	jobs orderJobs
}

// NewGetirHandler creates a Getir handler queueing order syncs on submitter
func NewGetirHandler(submitter scheduler.Submitter, logger *zap.Logger) *GetirHandler {
	return &GetirHandler{jobs: newOrderJobs(submitter, logger)}
}

var _ qcommerce.EventHandler = (*GetirHandler)(nil)

func (h *GetirHandler) Platform() qcommerce.PlatformType {
	return qcommerce.PlatformGetir
}

func (h *GetirHandler) VerifySignature(secret string, headers http.Header, body []byte) error {
	return verifyHMAC(secret, headers, GetirSignatureHeader, body)
}

func (h *GetirHandler) Decode(body []byte) (*qcommerce.WebhookEvent, error) {
	var p getirPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, malformed(err)
	}
	eventType, ok := getirEventTypes[p.Event]
	if !ok {
		return nil, unsupported(p.Event)
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, qcommerce.ErrMissingEventID
	}
	return &qcommerce.WebhookEvent{
		EventID:   p.ID,
		EventType: eventType,
		OrderID:   p.FoodOrder.ID,
		Payload:   json.RawMessage(body),
	}, nil
}

func (h *GetirHandler) HandleEvent(ctx context.Context, channel *qcommerce.Channel, event *qcommerce.WebhookEvent) (map[string]any, error) {
	return h.jobs.enqueue(ctx, channel, event)
}
