package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mobilsoft/connectors/internal/interfaces/http/dto"
)

// RateLimiter keeps one token bucket per key. Each bucket holds limit tokens
// and refills at limit per window.
type RateLimiter struct {
	limit  int
	window time.Duration
	every  rate.Limit

	mu      sync.Mutex
	buckets map[string]*bucket

	done      chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts evicting idle buckets.
// Call Close to stop the eviction loop.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(limit)),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go rl.evictIdle(2 * window)
	return rl
}

// Close stops the eviction loop
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// evictIdle drops buckets untouched for idle. Such a bucket is full again,
// so dropping it changes nothing for the key.
func (rl *RateLimiter) evictIdle(idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.lastSeen) > idle {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) bucketFor(key string, now time.Time) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.every, rl.limit)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// Allow takes one token for key
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.take(key, time.Now())
	return ok
}

// take returns whether a token was available and, if not, how long until one is
func (rl *RateLimiter) take(key string, now time.Time) (bool, time.Duration) {
	r := rl.bucketFor(key, now).lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Remaining returns the whole tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	rl.mu.Unlock()
	if !ok {
		return rl.limit
	}
	return int(math.Floor(b.lim.TokensAt(time.Now())))
}

// RateLimit limits requests per client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// WebhookRateLimitKey keys webhook deliveries by platform and client IP so a
// noisy platform cannot starve the others.
func WebhookRateLimitKey(c *gin.Context) string {
	return c.Param("platform") + ":" + c.ClientIP()
}

// RateLimitByKey answers 429 with Retry-After once the bucket of keyFunc(c) is empty
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		allowed, wait := limiter.take(key, time.Now())
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				GetRequestID(c),
			))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
