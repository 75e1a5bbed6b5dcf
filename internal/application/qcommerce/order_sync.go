package qcommerce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
)

// OrderSyncService runs the channel_order_sync jobs queued by webhook handlers.
// A job logs the notified order and event and stamps the channel's last sync
// time. Order bodies are not fetched from the platform.
type OrderSyncService struct {
	channels qcommerce.ChannelRepository
	now      func() time.Time
	logger   *zap.Logger
}

// NewOrderSyncService creates an order sync service
func NewOrderSyncService(channels qcommerce.ChannelRepository, logger *zap.Logger) *OrderSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSyncService{channels: channels, now: time.Now, logger: logger}
}

// Sync handles one queued notification for the channel and returns a job summary
func (s *OrderSyncService) Sync(ctx context.Context, channelID uuid.UUID, params map[string]string) (string, error) {
	channel, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		return "", err
	}
	if !channel.Active {
		return fmt.Sprintf("channel %s is inactive, nothing to do", channel.Name), nil
	}

	channel.MarkSynced(s.now())
	if err := s.channels.Save(ctx, channel); err != nil {
		return "", err
	}
	s.logger.Info("Channel order notification recorded",
		zap.String("channel", channel.Name),
		zap.String("platform", channel.Platform.String()),
		zap.String("order_id", params["order_id"]),
		zap.String("event_type", params["event_type"]),
	)
	return fmt.Sprintf("%s %s recorded for %s", params["event_type"], params["order_id"], channel.Name), nil
}
