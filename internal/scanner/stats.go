package scanner

import (
	"sync/atomic"
	"time"
)

// Stats tracks scan progress with atomic counters so workers can update
// them without locking.
type Stats struct {
	Total         int64
	Processed     int64
	Found         int64
	Errors        int64
	Retries       int64
	Timeouts      int64
	RateLimitHits int64

	// Start time in unix nanos. time.Time is multiword, so the progress
	// reporter would race a concurrent Reset reading it directly.
	startNanos int64
}

// StatsSnapshot is a point-in-time copy of Stats for reporting.
type StatsSnapshot struct {
	Total         int64   `json:"total"`
	Processed     int64   `json:"processed"`
	Found         int64   `json:"found"`
	Errors        int64   `json:"errors"`
	Retries       int64   `json:"retries"`
	Timeouts      int64   `json:"timeouts"`
	RateLimitHits int64   `json:"rate_limit_hits"`
	Elapsed       float64 `json:"elapsed_seconds"`
}

func NewStats(initialTotal int64) *Stats {
	return &Stats{
		Total:      initialTotal,
		startNanos: time.Now().UnixNano(),
	}
}

// StartTime returns when the current run began.
func (s *Stats) StartTime() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.startNanos))
}

// Reset rearms the counters for a fresh run while keeping the same
// pointer, so live readers stay valid.
func (s *Stats) Reset(total int64) {
	atomic.StoreInt64(&s.Total, total)
	atomic.StoreInt64(&s.Processed, 0)
	atomic.StoreInt64(&s.Found, 0)
	atomic.StoreInt64(&s.Errors, 0)
	atomic.StoreInt64(&s.Retries, 0)
	atomic.StoreInt64(&s.Timeouts, 0)
	atomic.StoreInt64(&s.RateLimitHits, 0)
	atomic.StoreInt64(&s.startNanos, time.Now().UnixNano())
}

func (s *Stats) IncrementProcessed() {
	atomic.AddInt64(&s.Processed, 1)
}

func (s *Stats) IncrementFound() {
	atomic.AddInt64(&s.Found, 1)
}

func (s *Stats) IncrementErrors() {
	atomic.AddInt64(&s.Errors, 1)
}

func (s *Stats) IncrementRetries() {
	atomic.AddInt64(&s.Retries, 1)
}

// IncrementTimeouts returns the new count so callers can react to
// crossing a threshold.
func (s *Stats) IncrementTimeouts() int64 {
	return atomic.AddInt64(&s.Timeouts, 1)
}

func (s *Stats) IncrementRateLimitHits() {
	atomic.AddInt64(&s.RateLimitHits, 1)
}

func (s *Stats) GetProcessed() int64 {
	return atomic.LoadInt64(&s.Processed)
}

func (s *Stats) GetFound() int64 {
	return atomic.LoadInt64(&s.Found)
}

func (s *Stats) GetErrors() int64 {
	return atomic.LoadInt64(&s.Errors)
}

func (s *Stats) GetTimeouts() int64 {
	return atomic.LoadInt64(&s.Timeouts)
}

func (s *Stats) GetTotal() int64 {
	return atomic.LoadInt64(&s.Total)
}

// Snapshot copies the counters for a report.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Total:         atomic.LoadInt64(&s.Total),
		Processed:     atomic.LoadInt64(&s.Processed),
		Found:         atomic.LoadInt64(&s.Found),
		Errors:        atomic.LoadInt64(&s.Errors),
		Retries:       atomic.LoadInt64(&s.Retries),
		Timeouts:      atomic.LoadInt64(&s.Timeouts),
		RateLimitHits: atomic.LoadInt64(&s.RateLimitHits),
		Elapsed:       time.Since(s.StartTime()).Seconds(),
	}
}
