package qcommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Event types understood by the intake
const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
	EventOrderUpdated   = "order.updated"
)

// WebhookEvent is a platform notification normalized across platforms
type WebhookEvent struct {
	EventID    string
	Platform   PlatformType
	EventType  string
	OrderID    string
	ReceivedAt time.Time
	Payload    json.RawMessage
}

// DedupKey is the idempotency key of the event
func (e *WebhookEvent) DedupKey() string {
	return string(e.Platform) + ":" + e.EventID
}

// EventHandler understands one platform's webhook deliveries
type EventHandler interface {
	Platform() PlatformType

	// VerifySignature authenticates a delivery with the channel's shared secret
	VerifySignature(secret string, headers http.Header, body []byte) error

	// Decode parses the body into a normalized event
	Decode(body []byte) (*WebhookEvent, error)

	// HandleEvent acts on a verified, first-seen event and returns the result echoed to the platform
	HandleEvent(ctx context.Context, channel *Channel, event *WebhookEvent) (map[string]any, error)
}
