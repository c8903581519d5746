package middlestore

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backend identifies a middle-store backend for rate limiting purposes.
type Backend string

const (
	BackendGCS        Backend = "gcs"
	BackendS3         Backend = "s3"
	BackendMinio      Backend = "minio"
	BackendFilesystem Backend = "filesystem"
)

// RateLimitConfig holds rate limiting configuration for a backend.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimits are conservative defaults, well below the providers' quotas.
var DefaultRateLimits = map[Backend]RateLimitConfig{
	BackendGCS:   {RequestsPerSecond: 10, BurstSize: 20},
	BackendS3:    {RequestsPerSecond: 50, BurstSize: 100},
	BackendMinio: {RequestsPerSecond: 50, BurstSize: 100},
}

// RateLimiter throttles calls to a remote backend with a token bucket and an
// optional backoff after the provider reports throttling.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter with the backend's defaults.
// Returns nil for backends without a default (the filesystem).
func NewRateLimiter(backend Backend) *RateLimiter {
	cfg, ok := DefaultRateLimits[backend]
	if !ok {
		return nil
	}
	return NewRateLimiterWithConfig(cfg)
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordThrottle.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordThrottle sets a backoff period after a throttling response
// (HTTP 429 or 503 SlowDown).
func (r *RateLimiter) RecordThrottle(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = 30 * time.Second
	}
	r.retryAt = time.Now().Add(retryAfter)
}

// Allow checks if a request can be made immediately without blocking.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return r.limiter.Allow()
}
