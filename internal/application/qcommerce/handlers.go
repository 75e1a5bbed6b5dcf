package qcommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/infrastructure/scheduler"
)

// DefaultJobRetries is the retry budget of queued order sync jobs
const DefaultJobRetries = 3

// orderJobs queues channel order syncs for verified events
type orderJobs struct {
	submitter  scheduler.Submitter
	maxRetries int
	logger     *zap.Logger
}

func newOrderJobs(submitter scheduler.Submitter, logger *zap.Logger) orderJobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return orderJobs{submitter: submitter, maxRetries: DefaultJobRetries, logger: logger}
}

// enqueue submits a channel_order_sync job. A job already in flight for the
// channel picks up the order too, so it is reported as queued.
func (o orderJobs) enqueue(_ context.Context, channel *qcommerce.Channel, event *qcommerce.WebhookEvent) (map[string]any, error) {
	job := scheduler.NewJob(scheduler.JobKindChannelOrderSync, channel.ID, channel.Name, o.maxRetries)
	job.Params["event_id"] = event.EventID
	job.Params["event_type"] = event.EventType
	job.Params["order_id"] = event.OrderID
	job.Params["platform"] = event.Platform.String()

	result := map[string]any{
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"order_id":   event.OrderID,
		"queued":     true,
	}
	err := o.submitter.Submit(job)
	switch {
	case err == nil:
		result["job_id"] = job.ID.String()
	case errors.Is(err, scheduler.ErrJobAlreadyQueued):
		o.logger.Debug("Order sync already queued", zap.String("channel_id", channel.ID.String()))
	default:
		return nil, fmt.Errorf("queue order sync: %w", err)
	}
	return result, nil
}

// verifyHMAC checks a hex HMAC-SHA256 of body sent in header.
// An optional "sha256=" prefix is accepted.
func verifyHMAC(secret string, headers http.Header, header string, body []byte) error {
	sig := strings.TrimSpace(headers.Get(header))
	if sig == "" {
		return qcommerce.ErrMissingSignature
	}
	sig = strings.TrimPrefix(strings.ToLower(sig), "sha256=")
	got, err := hex.DecodeString(sig)
	if err != nil {
		return qcommerce.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return qcommerce.ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body, as the platforms send it
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", qcommerce.ErrMalformedEvent, err)
}

func unsupported(eventType string) error {
	return fmt.Errorf("%w: %q", qcommerce.ErrUnsupportedEvent, eventType)
}
