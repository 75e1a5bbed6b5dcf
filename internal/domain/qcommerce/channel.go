package qcommerce

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

var (
	ErrChannelNotFound   = errors.New("qcommerce: channel not found")
	ErrUnknownPlatform   = errors.New("qcommerce: unknown platform")
	ErrInvalidSignature  = errors.New("qcommerce: webhook signature mismatch")
	ErrMissingSignature  = errors.New("qcommerce: webhook signature missing")
	ErrMissingSecret     = errors.New("qcommerce: channel has no webhook secret")
	ErrMalformedEvent    = errors.New("qcommerce: malformed webhook payload")
	ErrMissingEventID    = errors.New("qcommerce: webhook event id missing")
	ErrUnsupportedEvent  = errors.New("qcommerce: unsupported event type")
	ErrDuplicateDelivery = errors.New("qcommerce: event already processed")
)

// Channel is a merchant account on a quick-commerce platform
type Channel struct {
	shared.BaseEntity
	Name          string
	Platform      PlatformType
	Active        bool
	MerchantID    string
	APIKey        string
	WebhookSecret string
	ShopID        string
	LastSync      *time.Time
}

// CanVerify reports whether webhook deliveries can be authenticated
func (c *Channel) CanVerify() bool {
	return c.WebhookSecret != ""
}

// MarkSynced records the last time events or orders were pulled
func (c *Channel) MarkSynced(now time.Time) {
	c.LastSync = &now
	c.Touch(now)
}

// ChannelRepository loads channels
type ChannelRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Channel, error)
	// FindActiveByPlatform returns ErrChannelNotFound when no active channel exists
	FindActiveByPlatform(ctx context.Context, platform PlatformType) (*Channel, error)
	Save(ctx context.Context, channel *Channel) error
}
