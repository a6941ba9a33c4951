package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Limiter is what the probe orchestrator throttles through. Wait suspends
// until a request may proceed (or reports failure); OnResponse feeds status
// codes back so adaptive implementations can adjust.
type Limiter interface {
	Wait(ctx context.Context, host string) bool
	OnResponse(statusCode int, host string)
}

// Stats mirrors one limiter's counters for reporting.
type Stats struct {
	TotalRequests     int64     `json:"total_requests"`
	ThrottledRequests int64     `json:"throttled_requests"`
	RateLimitHits     int64     `json:"rate_limit_hits"`
	CurrentRate       float64   `json:"current_rate"`
	Last429           time.Time `json:"last_429_time"`
}

// AdaptiveConfig tunes an AdaptiveLimiter.
type AdaptiveConfig struct {
	InitialRate      float64
	Burst            int
	MinRate          float64
	MaxRate          float64
	BackoffFactor    float64
	RecoveryFactor   float64
	SuccessThreshold int
	WaitTimeout      time.Duration
}

// DefaultAdaptiveConfig matches the documented defaults: halve on 429, grow
// by 10% after 50 consecutive successes.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		InitialRate:      DefaultRate,
		Burst:            DefaultBurst,
		MinRate:          MinRate,
		MaxRate:          100.0,
		BackoffFactor:    0.5,
		RecoveryFactor:   1.1,
		SuccessThreshold: 50,
		WaitTimeout:      DefaultWaitLimit,
	}
}

// AdaptiveLimiter layers a per-host bucket on top of a global bucket and
// adjusts both from response feedback. Host buckets are created lazily at
// half the current global rate and half the burst.
type AdaptiveLimiter struct {
	cfg AdaptiveConfig

	global *TokenBucket

	mu                   sync.Mutex
	currentRate          float64
	hostBuckets          map[string]*TokenBucket
	consecutiveSuccesses int
	stats                Stats
}

// NewAdaptive constructs an AdaptiveLimiter from cfg, filling zero values
// with defaults.
func NewAdaptive(cfg AdaptiveConfig) *AdaptiveLimiter {
	def := DefaultAdaptiveConfig()
	if cfg.InitialRate <= 0 {
		cfg.InitialRate = def.InitialRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MinRate <= 0 {
		cfg.MinRate = def.MinRate
	}
	if cfg.MaxRate <= 0 {
		cfg.MaxRate = def.MaxRate
	}
	if cfg.BackoffFactor <= 0 || cfg.BackoffFactor >= 1 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.RecoveryFactor <= 1 {
		cfg.RecoveryFactor = def.RecoveryFactor
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}

	return &AdaptiveLimiter{
		cfg:         cfg,
		global:      NewTokenBucket(cfg.InitialRate, cfg.Burst),
		currentRate: clampRate(cfg.InitialRate),
		hostBuckets: make(map[string]*TokenBucket),
		stats:       Stats{CurrentRate: clampRate(cfg.InitialRate)},
	}
}

// Acquire attempts to take a token from the global bucket and, when host is
// non-empty, from that host's bucket as well. Non-blocking.
func (a *AdaptiveLimiter) Acquire(host string) bool {
	a.mu.Lock()
	a.stats.TotalRequests++
	a.mu.Unlock()

	if !a.global.Acquire() {
		a.noteThrottled()
		return false
	}

	if host != "" {
		if !a.hostBucket(host).Acquire() {
			a.noteThrottled()
			return false
		}
	}

	return true
}

// Wait blocks until Acquire succeeds for both buckets or the configured
// wait timeout / context expires.
func (a *AdaptiveLimiter) Wait(ctx context.Context, host string) bool {
	deadline := time.Now().Add(a.cfg.WaitTimeout)

	for {
		if a.Acquire(host) {
			return true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		interval := time.Duration(float64(time.Second) / a.CurrentRate())
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

// OnResponse feeds a completed probe's status code back into the limiter.
// 429 backs the rate off immediately; a run of consecutive non-error
// responses crossing the threshold recovers it. The hysteresis keeps one
// transient error from oscillating the rate.
func (a *AdaptiveLimiter) OnResponse(statusCode int, host string) {
	switch {
	case statusCode == http.StatusTooManyRequests:
		a.backOff(host)
	case statusCode >= 200 && statusCode < 400:
		a.recover()
	}
}

func (a *AdaptiveLimiter) backOff(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.RateLimitHits++
	a.stats.Last429 = time.Now()
	a.consecutiveSuccesses = 0

	newRate := a.currentRate * a.cfg.BackoffFactor
	if newRate < a.cfg.MinRate {
		newRate = a.cfg.MinRate
	}
	a.currentRate = newRate
	a.global.UpdateRate(newRate)
	a.stats.CurrentRate = a.global.Rate()

	// The offending host gets throttled harder than the global pool.
	if host != "" {
		if hb, ok := a.hostBuckets[host]; ok {
			hostRate := newRate / 2
			if hostRate < a.cfg.MinRate {
				hostRate = a.cfg.MinRate
			}
			hb.UpdateRate(hostRate)
		}
	}
}

func (a *AdaptiveLimiter) recover() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.consecutiveSuccesses++
	if a.consecutiveSuccesses < a.cfg.SuccessThreshold {
		return
	}
	a.consecutiveSuccesses = 0

	newRate := a.currentRate * a.cfg.RecoveryFactor
	if newRate > a.cfg.MaxRate {
		newRate = a.cfg.MaxRate
	}
	a.currentRate = newRate
	a.global.UpdateRate(newRate)
	a.stats.CurrentRate = a.global.Rate()
}

// CurrentRate returns the adaptive global rate.
func (a *AdaptiveLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// Snapshot returns a copy of the limiter's counters.
func (a *AdaptiveLimiter) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *AdaptiveLimiter) hostBucket(host string) *TokenBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	hb, ok := a.hostBuckets[host]
	if !ok {
		burst := a.cfg.Burst / 2
		if burst < 1 {
			burst = 1
		}
		hb = NewTokenBucket(a.currentRate/2, burst)
		a.hostBuckets[host] = hb
	}
	return hb
}

func (a *AdaptiveLimiter) noteThrottled() {
	a.mu.Lock()
	a.stats.ThrottledRequests++
	a.mu.Unlock()
}
