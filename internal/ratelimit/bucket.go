// Package ratelimit implements the request throttling layer: a token bucket
// primitive, an adaptive global+per-host limiter driven by 429 feedback, and
// a fixed-rate limiter used when adaptive behavior is disabled.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// MinRate and MaxRate bound every bucket's refill rate (tokens/second).
	MinRate = 1.0
	MaxRate = 1000.0

	DefaultRate      = 50.0
	DefaultBurst     = 10
	DefaultWaitLimit = 30 * time.Second
)

// TokenBucket accumulates permits at a fixed rate up to a capacity.
// Acquire never blocks; WaitForToken polls. The token count stays within
// [0, capacity] after every operation.
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket. The rate is clamped to
// [MinRate, MaxRate]; capacity is at least 1.
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		rate:       clampRate(rate),
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

// Acquire takes one token if available. It refills first based on the time
// elapsed since the last refill and never blocks.
func (b *TokenBucket) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// WaitForToken polls Acquire until it succeeds, the timeout expires, or the
// context is cancelled. The poll interval is 1/rate, shortened to whatever
// remains of the timeout.
func (b *TokenBucket) WaitForToken(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		if b.Acquire() {
			return true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		interval := time.Duration(float64(time.Second) / b.Rate())
		if interval > remaining {
			interval = remaining
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

// UpdateRate changes the refill rate, clamped to [MinRate, MaxRate].
// Tokens accumulated so far are settled at the old rate first.
func (b *TokenBucket) UpdateRate(rate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	b.rate = clampRate(rate)
}

// Rate returns the current refill rate.
func (b *TokenBucket) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

// Tokens returns the current token count after settling the refill.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}

// Capacity returns the bucket's maximum token count.
func (b *TokenBucket) Capacity() float64 {
	return b.capacity
}

func (b *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

func clampRate(rate float64) float64 {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}
