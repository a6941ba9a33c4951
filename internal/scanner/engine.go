// Package scanner drives the probe run: it loads and shapes the path
// list for the active detection mode, fans tasks out to a bounded worker
// pool, and collects one Result per completed probe.
package scanner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/panelgrab/panelgrab/internal/config"
	"github.com/panelgrab/panelgrab/internal/detection"
	"github.com/panelgrab/panelgrab/internal/fuzzer"
	"github.com/panelgrab/panelgrab/internal/proxy"
	"github.com/panelgrab/panelgrab/internal/ratelimit"
	"github.com/panelgrab/panelgrab/internal/transport"
)

// Keywords that survive stealth-mode filtering.
var stealthKeywords = []string{"admin", "administrator", "dashboard", "panel", "control", "login", "cp"}

// How many stealth paths come from keyword matches vs random sampling.
const (
	stealthKeywordCap = 300
	stealthSampleSize = 200
)

type Engine struct {
	cfg      config.Config
	limiter  ratelimit.Limiter
	pool     *proxy.Pool
	analyzer *detection.Analyzer
	logger   *slog.Logger

	direct    *transport.Client
	clients   map[string]*transport.Client
	clientsMu sync.Mutex

	stats *Stats
	host  string

	rng   *rand.Rand
	rngMu sync.Mutex

	// Concurrency control: workers whose index is at or above
	// allowedWorkers exit after finishing their current task.
	allowedWorkers int32
	recentTimeouts int64
}

// Option overrides a collaborator, mainly for tests.
type Option func(*Engine)

func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

func WithProxyPool(p *proxy.Pool) Option {
	return func(e *Engine) { e.pool = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	parsed, err := url.Parse(cfg.TargetURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q", cfg.TargetURL)
	}

	mode := cfg.Mode()

	e := &Engine{
		cfg:      cfg,
		analyzer: detection.NewAnalyzer(),
		logger:   slog.Default(),
		clients:  make(map[string]*transport.Client),
		host:     parsed.Host,
		stats:    NewStats(0),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	e.direct = transport.NewClient(transport.Options{
		ConnectTimeout: time.Duration(mode.ConnectTimeout) * time.Second,
		ReadTimeout:    time.Duration(mode.ReadTimeout) * time.Second,
		MaxBodyMB:      cfg.MaxResponseMB,
	})

	switch {
	case !cfg.UseRateLimiting:
		e.limiter = ratelimit.Nop{}
	case cfg.AdaptiveRateLimiting:
		acfg := ratelimit.DefaultAdaptiveConfig()
		acfg.InitialRate = cfg.RateLimit
		acfg.Burst = cfg.RateBurst
		e.limiter = ratelimit.NewAdaptive(acfg)
	default:
		e.limiter = ratelimit.NewFixed(cfg.RateLimit, cfg.RateBurst)
	}

	if cfg.UseProxies {
		pool := proxy.NewPool(proxy.Options{
			Strategy:            cfg.ProxyRotationStrategy,
			MaxFailures:         cfg.ProxyMaxFailures,
			HealthCheckInterval: time.Duration(cfg.ProxyHealthCheckInterval) * time.Second,
			Logger:              e.logger,
		})
		pool.AddAll(cfg.Proxies)
		if cfg.ProxyListFile != "" {
			if _, err := pool.LoadFromFile(cfg.ProxyListFile); err != nil {
				return nil, err
			}
		}
		if pool.Len() == 0 && cfg.ProxyRequired {
			return nil, fmt.Errorf("proxies are required but none were loaded")
		}
		e.pool = pool
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Progress exposes live counters during a run.
func (e *Engine) Progress() *Stats {
	return e.stats
}

// ProxyPool returns the pool in use, nil when proxies are disabled.
func (e *Engine) ProxyPool() *proxy.Pool {
	return e.pool
}

// Run probes every shaped path and returns the full report. A cancelled
// context stops dispatch; in-flight probes finish or fail fast, and the
// report covers whatever completed.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	mode := e.cfg.Mode()

	paths, err := e.loadPaths()
	if err != nil {
		return nil, err
	}
	paths = e.shapePaths(paths, mode)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to scan")
	}

	e.stats.Reset(int64(len(paths)))
	atomic.StoreInt32(&e.allowedWorkers, int32(mode.MaxConcurrentTasks))
	atomic.StoreInt64(&e.recentTimeouts, 0)

	info := ScanInfo{
		ScanID:              uuid.NewString(),
		TargetURL:           e.cfg.TargetURL,
		ScanMode:            e.cfg.DetectionMode,
		TotalPaths:          len(paths),
		FuzzingEnabled:      e.cfg.UseFuzzing,
		RateLimitingEnabled: e.cfg.UseRateLimiting,
		ProxiesEnabled:      e.cfg.UseProxies,
		Timestamp:           time.Now().Format(time.RFC3339),
	}

	e.logger.Info("scan starting",
		"scan_id", info.ScanID,
		"target", info.TargetURL,
		"mode", info.ScanMode,
		"paths", info.TotalPaths,
		"workers", mode.MaxConcurrentTasks,
	)

	var monitorDone <-chan struct{}
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	if e.pool != nil {
		monitorDone = e.pool.StartHealthMonitor(monitorCtx)
	}

	// Dispatch buffer matches the original's batch size so workers stay
	// fed without queueing the whole path list up front.
	taskChan := make(chan Task, config.DefaultBatchSize)
	resultChan := make(chan Result, mode.MaxConcurrentTasks*2)

	var results []Result
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for result := range resultChan {
			results = append(results, result)
			if result.Found {
				e.logger.Info("admin panel candidate",
					"url", result.URL,
					"status", result.StatusCode,
					"confidence", result.Confidence,
				)
			}
		}
	}()

	workerDone := make(chan struct{}, mode.MaxConcurrentTasks)
	var taskWg sync.WaitGroup
	for i := 0; i < mode.MaxConcurrentTasks; i++ {
		go e.worker(ctx, i, taskChan, resultChan, workerDone, &taskWg)
	}

	taskWg.Add(len(paths))
	go func() {
		for _, p := range paths {
			task := Task{BaseURL: e.cfg.TargetURL, Path: p}
			select {
			case taskChan <- task:
			case <-ctx.Done():
				taskWg.Done()
			}
		}
		close(taskChan)
	}()

	taskWg.Wait()
	for i := 0; i < mode.MaxConcurrentTasks; i++ {
		<-workerDone
	}
	close(resultChan)
	collectWg.Wait()

	stopMonitor()
	if monitorDone != nil {
		<-monitorDone
	}

	info.ScanTime = time.Since(e.stats.StartTime()).Seconds()

	e.logger.Info("scan finished",
		"scan_id", info.ScanID,
		"processed", e.stats.GetProcessed(),
		"found", e.stats.GetFound(),
		"errors", e.stats.GetErrors(),
		"elapsed", info.ScanTime,
	)

	return &Report{
		Info:    info,
		Results: results,
		Stats:   e.stats.Snapshot(),
	}, ctx.Err()
}

// loadPaths reads the wordlist (plain text or JSON) and applies fuzzing
// expansion when enabled.
func (e *Engine) loadPaths() ([]string, error) {
	var paths []string
	var err error

	switch strings.ToLower(filepath.Ext(e.cfg.Wordlist)) {
	case ".json":
		paths, err = loadJSONWordlist(e.cfg.Wordlist)
	default:
		paths, err = loadTextWordlist(e.cfg.Wordlist)
	}
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("wordlist %s is empty", e.cfg.Wordlist)
	}

	if e.cfg.UseFuzzing {
		f := fuzzer.New(e.cfg.FuzzingDepth)
		expanded := f.ExpandAll(paths)
		expanded = append(expanded, f.GenerateAdminPaths()...)
		expanded = append(expanded, f.GenerateAPIPaths()...)
		paths = fuzzer.Prioritize(dedupe(expanded))
		e.logger.Debug("fuzzing expanded wordlist", "paths", len(paths))
	}

	return paths, nil
}

// shapePaths applies the detection mode's path policy. Simple takes the
// head of the list, stealth keeps keyword matches plus a random sample,
// and every mode caps at the profile's MaxPaths.
func (e *Engine) shapePaths(paths []string, mode config.ModeProfile) []string {
	switch e.cfg.DetectionMode {
	case config.ModeStealth:
		paths = e.stealthSample(paths)
	}
	if mode.MaxPaths > 0 && len(paths) > mode.MaxPaths {
		paths = paths[:mode.MaxPaths]
	}
	return paths
}

// stealthSample keeps up to 300 keyword-matching paths and adds up to
// 200 randomly sampled from the remainder.
func (e *Engine) stealthSample(paths []string) []string {
	var matched, rest []string
	for _, p := range paths {
		if matchesStealthKeyword(p) && len(matched) < stealthKeywordCap {
			matched = append(matched, p)
		} else {
			rest = append(rest, p)
		}
	}

	sample := stealthSampleSize
	if sample > len(rest) {
		sample = len(rest)
	}
	if sample > 0 {
		rng := e.rng
		if e.cfg.StealthSeed != 0 {
			rng = rand.New(rand.NewSource(e.cfg.StealthSeed))
		}
		e.rngMu.Lock()
		idx := rng.Perm(len(rest))[:sample]
		e.rngMu.Unlock()
		sort.Ints(idx)
		for _, i := range idx {
			matched = append(matched, rest[i])
		}
	}
	return matched
}

func matchesStealthKeyword(path string) bool {
	lower := strings.ToLower(path)
	for _, kw := range stealthKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func loadTextWordlist(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wordlist: %w", err)
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			paths = append(paths, line)
		}
	}
	return paths, scanner.Err()
}

// loadJSONWordlist accepts either a bare array of strings or an object
// with a "paths" key.
func loadJSONWordlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening wordlist: %w", err)
	}

	var bare []string
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Paths []string `json:"paths"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing JSON wordlist %s: %w", path, err)
	}
	return wrapped.Paths, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
