package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// DefaultSweepInterval is how often expired delivery ids are dropped
const DefaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed webhook delivery ids in process memory.
// State is not shared between instances; use the Redis store when running more than one.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

// InMemoryOption configures an InMemoryIdempotencyStore
type InMemoryOption func(*InMemoryIdempotencyStore)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		s.now = now
	}
}

// NewInMemoryIdempotencyStore creates a store and starts its sweeper.
// A non-positive sweep interval disables sweeping; expired ids are still ignored on lookup.
func NewInMemoryIdempotencyStore(sweepInterval time.Duration, opts ...InMemoryOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expires: make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	} else {
		close(s.done)
	}
	return s
}

// MarkProcessed records eventID unless it is already recorded and unexpired
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expires[eventID]; ok && now.Before(exp) {
		return false, nil
	}
	s.expires[eventID] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether eventID is recorded and unexpired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expires[eventID]
	return ok && s.now().Before(exp), nil
}

// Release forgets eventID
func (s *InMemoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	delete(s.expires, eventID)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

// Len returns the number of ids currently held, expired ones included
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

func (s *InMemoryIdempotencyStore) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, id)
		}
	}
}
