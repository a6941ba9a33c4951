package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// FixedLimiter enforces a constant global rate with no feedback behavior.
// It is the non-adaptive path, backed by golang.org/x/time/rate.
type FixedLimiter struct {
	limiter *rate.Limiter
}

// NewFixed builds a FixedLimiter at rps tokens/second with the given burst.
func NewFixed(rps float64, burst int) *FixedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &FixedLimiter{
		limiter: rate.NewLimiter(rate.Limit(clampRate(rps)), burst),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (f *FixedLimiter) Wait(ctx context.Context, host string) bool {
	return f.limiter.Wait(ctx) == nil
}

// OnResponse is a no-op; a fixed limiter ignores feedback.
func (f *FixedLimiter) OnResponse(statusCode int, host string) {}

// Nop is a Limiter that never throttles, used when rate limiting is
// disabled entirely.
type Nop struct{}

func (Nop) Wait(ctx context.Context, host string) bool { return true }
func (Nop) OnResponse(statusCode int, host string)     {}
