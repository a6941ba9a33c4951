package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

// Rotation strategies.
const (
	StrategyRoundRobin  = "round_robin"
	StrategyRandom      = "random"
	StrategyPerformance = "performance"
)

const (
	DefaultMaxFailures         = 3
	DefaultHealthCheckInterval = 5 * time.Minute
	DefaultHealthCheckTimeout  = 10 * time.Second
	DefaultHealthCheckURL      = "https://www.google.com"
)

// Options configures a Pool. Zero values fall back to defaults.
type Options struct {
	Strategy            string
	MaxFailures         int
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	HealthCheckURL      string
	Logger              *slog.Logger
	Seed                int64 // non-zero seeds the random strategy, for tests
}

// Pool holds the shared proxy list. Selection and stats mutation happen
// under one mutex; the lock is never held across a network call.
type Pool struct {
	strategy            string
	maxFailures         int
	healthCheckInterval time.Duration
	healthCheckTimeout  time.Duration
	healthCheckURL      string
	log                 *slog.Logger

	mu       sync.Mutex
	proxies  []*Proxy
	rotation int
	rng      *rand.Rand
}

// NewPool builds an empty pool.
func NewPool(opts Options) *Pool {
	if opts.Strategy == "" {
		opts.Strategy = StrategyRoundRobin
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if opts.HealthCheckTimeout <= 0 {
		opts.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	if opts.HealthCheckURL == "" {
		opts.HealthCheckURL = DefaultHealthCheckURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Pool{
		strategy:            opts.Strategy,
		maxFailures:         opts.MaxFailures,
		healthCheckInterval: opts.HealthCheckInterval,
		healthCheckTimeout:  opts.HealthCheckTimeout,
		healthCheckURL:      opts.HealthCheckURL,
		log:                 opts.Logger,
		rng:                 rand.New(rand.NewSource(seed)),
	}
}

// Add parses and appends one proxy. Malformed URLs and duplicates are
// rejected with an error; callers treat this as a warning, not a fatal.
func (pl *Pool) Add(rawURL string) error {
	p, err := Parse(rawURL)
	if err != nil {
		return err
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	for _, existing := range pl.proxies {
		if existing.URL == p.URL {
			return fmt.Errorf("duplicate proxy %s", p.Address())
		}
	}

	pl.proxies = append(pl.proxies, p)
	pl.log.Info("added proxy", "address", p.Address(), "scheme", p.Scheme)
	return nil
}

// AddAll adds every URL, logging rejects, and returns how many were accepted.
func (pl *Pool) AddAll(urls []string) int {
	count := 0
	for _, u := range urls {
		if err := pl.Add(u); err != nil {
			pl.log.Warn("skipping proxy", "url", u, "error", err)
			continue
		}
		count++
	}
	return count
}

// LoadFromFile bulk-loads newline-delimited proxy URLs, skipping blanks and
// comments. A missing file is a warning, not an error: the scan continues
// without proxies.
func (pl *Pool) LoadFromFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			pl.log.Warn("proxy file not found", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("opening proxy file: %w", err)
	}
	defer file.Close()

	count := 0
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := pl.Add(line); err != nil {
			pl.log.Warn("skipping proxy", "url", line, "error", err)
			continue
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("reading proxy file: %w", err)
	}

	pl.log.Info("loaded proxies", "path", path, "count", count)
	return count, nil
}

// Acquire picks a healthy proxy according to the rotation strategy, or nil
// when the pool is empty. If nothing is healthy, proxies whose last failure
// is older than the health-check interval are provisionally reinstated so a
// transient outage cannot drain the pool forever.
func (pl *Pool) Acquire() *Proxy {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	var healthy []*Proxy
	for _, p := range pl.proxies {
		if p.Stats.Healthy {
			healthy = append(healthy, p)
		}
	}

	if len(healthy) == 0 {
		now := time.Now()
		for _, p := range pl.proxies {
			if now.Sub(p.Stats.LastFailure) > pl.healthCheckInterval {
				p.Stats.Healthy = true
				p.Stats.ConsecutiveFailures = 0
				healthy = append(healthy, p)
			}
		}
	}

	if len(healthy) == 0 {
		return nil
	}

	var chosen *Proxy
	switch pl.strategy {
	case StrategyRandom:
		chosen = healthy[pl.rng.Intn(len(healthy))]
	case StrategyPerformance:
		chosen = healthy[0]
		for _, p := range healthy[1:] {
			if betterPerformance(p, chosen) {
				chosen = p
			}
		}
	default: // round robin
		pl.rotation = (pl.rotation + 1) % len(healthy)
		chosen = healthy[pl.rotation]
	}

	chosen.Stats.LastUsed = time.Now()
	return chosen
}

// betterPerformance prefers the higher success rate, tie-broken by lower
// average latency.
func betterPerformance(a, b *Proxy) bool {
	ra, rb := a.Stats.SuccessRate(), b.Stats.SuccessRate()
	if ra != rb {
		return ra > rb
	}
	return a.Stats.AvgLatency() < b.Stats.AvgLatency()
}

// RecordSuccess updates stats after a request through p completed. Any
// success resets the consecutive-failure counter and restores health.
func (pl *Pool) RecordSuccess(p *Proxy, latency time.Duration) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	p.Stats.Total++
	p.Stats.Success++
	p.Stats.TotalLatency += latency
	p.Stats.LastSuccess = time.Now()
	p.Stats.ConsecutiveFailures = 0
	p.Stats.Healthy = true
}

// RecordFailure updates stats after a request through p failed. The proxy
// goes unhealthy exactly when consecutive failures reach the limit.
func (pl *Pool) RecordFailure(p *Proxy) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	p.Stats.Total++
	p.Stats.Failure++
	p.Stats.LastFailure = time.Now()
	p.Stats.ConsecutiveFailures++

	if p.Stats.ConsecutiveFailures >= pl.maxFailures {
		p.Stats.Healthy = false
		pl.log.Warn("proxy quarantined",
			"address", p.Address(),
			"consecutive_failures", p.Stats.ConsecutiveFailures)
	}
}

// Len returns the total number of proxies.
func (pl *Pool) Len() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.proxies)
}

// HealthyCount returns how many proxies are currently marked healthy.
func (pl *Pool) HealthyCount() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	n := 0
	for _, p := range pl.proxies {
		if p.Stats.Healthy {
			n++
		}
	}
	return n
}

// Snapshot summarizes the pool for reporting.
type Snapshot struct {
	Total   int             `json:"total_proxies"`
	Healthy int             `json:"healthy_proxies"`
	Proxies []ProxySnapshot `json:"proxies"`
}

// ProxySnapshot is one proxy's reportable state.
type ProxySnapshot struct {
	URL                 string  `json:"url"`
	Scheme              string  `json:"scheme"`
	Healthy             bool    `json:"healthy"`
	SuccessRate         float64 `json:"success_rate"`
	AvgLatency          float64 `json:"avg_latency"`
	Total               int64   `json:"total_requests"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
}

// Stats returns a point-in-time summary of every proxy.
func (pl *Pool) Stats() Snapshot {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	snap := Snapshot{Total: len(pl.proxies)}
	for _, p := range pl.proxies {
		if p.Stats.Healthy {
			snap.Healthy++
		}
		avg := p.Stats.AvgLatency()
		if p.Stats.Success == 0 {
			avg = 0
		}
		snap.Proxies = append(snap.Proxies, ProxySnapshot{
			URL:                 p.URL,
			Scheme:              p.Scheme,
			Healthy:             p.Stats.Healthy,
			SuccessRate:         p.Stats.SuccessRate(),
			AvgLatency:          avg,
			Total:               p.Stats.Total,
			ConsecutiveFailures: p.Stats.ConsecutiveFailures,
		})
	}
	return snap
}
