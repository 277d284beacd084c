// Package ratelimit implements the process-wide token bucket that paces page
// fetches.
package ratelimit

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/product-crawler/internal/metrics"
)

// Limiter paces every fetch of the process through one token bucket.
type Limiter struct {
	limiter *rate.Limiter
}

// Config holds rate limiter configuration.
type Config struct {
	// MaxVisit is the number of permits per second; zero or less disables
	// limiting.
	MaxVisit float64
}

// New creates a new Limiter. The burst is floor(MaxVisit), at least one.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.MaxVisit)
	if cfg.MaxVisit <= 0 {
		r = rate.Inf
	}
	burst := int(math.Floor(cfg.MaxVisit))
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(r, burst)}
}

// Acquire blocks until a permit is available. It cannot be canceled.
func (l *Limiter) Acquire() {
	start := time.Now()
	// Wait only fails on context cancellation or when n exceeds the burst.
	_ = l.limiter.Wait(context.Background())
	if duration := time.Since(start); duration > time.Millisecond {
		metrics.ObserveRateLimitDelay(duration)
	}
}

// Limit returns the configured permits per second.
func (l *Limiter) Limit() rate.Limit {
	return l.limiter.Limit()
}

// Burst returns the bucket size.
func (l *Limiter) Burst() int {
	return l.limiter.Burst()
}
