package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which inbound event ids were already handled.
type IdempotencyStore interface {
	// MarkProcessed records eventID for ttl.
	// Returns true if the id was newly recorded, false if it was already present.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether eventID is currently recorded
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Release forgets eventID so a redelivery can be handled again.
	// Used when handling failed after the id was marked.
	Release(ctx context.Context, eventID string) error

	// Close releases resources held by the store
	Close() error
}
