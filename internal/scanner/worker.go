package scanner

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panelgrab/panelgrab/internal/config"
	"github.com/panelgrab/panelgrab/internal/detection"
	"github.com/panelgrab/panelgrab/internal/proxy"
	"github.com/panelgrab/panelgrab/internal/transport"
)

// worker pulls tasks until the channel closes or its index falls outside
// the allowed concurrency window.
func (e *Engine) worker(
	ctx context.Context,
	id int,
	tasks <-chan Task,
	results chan<- Result,
	done chan<- struct{},
	taskWg *sync.WaitGroup,
) {
	defer func() {
		done <- struct{}{}
	}()

	mode := e.cfg.Mode()

	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- e.errorResult(task, ctx.Err())
			e.stats.IncrementProcessed()
			taskWg.Done()
			continue
		default:
		}

		if mode.DelaySeconds > 0 {
			select {
			case <-time.After(time.Duration(mode.DelaySeconds * float64(time.Second))):
			case <-ctx.Done():
			}
		}

		results <- e.process(ctx, task, mode)
		// One increment per retired task, not per attempt, so Processed
		// never exceeds Total under retries.
		e.stats.IncrementProcessed()
		taskWg.Done()

		if int32(id) >= atomic.LoadInt32(&e.allowedWorkers) {
			return
		}
	}
}

// process runs one task through the retry loop.
func (e *Engine) process(ctx context.Context, task Task, mode config.ModeProfile) Result {
	var lastErr error

	for attempt := 0; attempt <= mode.MaxRetries; attempt++ {
		if attempt > 0 {
			e.stats.IncrementRetries()
			select {
			case <-time.After(e.retryDelay(attempt)):
			case <-ctx.Done():
				return e.errorResult(task, ctx.Err())
			}
		}

		result, retryable, err := e.probeOnce(ctx, task, mode)
		if err == nil {
			return result
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}

	return e.errorResult(task, lastErr)
}

// retryDelay grows the base delay by the backoff factor per attempt,
// with half a second of jitter either way.
func (e *Engine) retryDelay(attempt int) time.Duration {
	delay := config.RetryDelaySeconds * math.Pow(config.TimeoutBackoffFactor, float64(attempt-1))
	e.rngMu.Lock()
	jitter := (e.rng.Float64()*2 - 1) * config.RetryJitterSeconds
	e.rngMu.Unlock()
	delay += jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay * float64(time.Second))
}

// probeOnce performs a single HTTP probe. Network errors are retryable;
// setup errors and mandatory-proxy starvation are not.
func (e *Engine) probeOnce(ctx context.Context, task Task, mode config.ModeProfile) (Result, bool, error) {
	if !e.limiter.Wait(ctx, e.host) {
		return Result{}, true, errors.New("rate limiter wait timed out")
	}

	var viaProxy *proxy.Proxy
	if e.pool != nil {
		viaProxy = e.pool.Acquire()
		if viaProxy == nil && e.cfg.ProxyRequired {
			return Result{}, false, errors.New("no healthy proxy available")
		}
	}

	client, err := e.clientFor(viaProxy, mode)
	if err != nil {
		// Broken proxy config; count it against the proxy and go direct.
		e.pool.RecordFailure(viaProxy)
		client = e.direct
		if e.cfg.ProxyRequired {
			return Result{}, true, err
		}
		viaProxy = nil
	}

	fullURL := strings.TrimSuffix(task.BaseURL, "/") + "/" + strings.TrimPrefix(task.Path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Result{}, false, err
	}
	req.Header.Set("User-Agent", e.userAgent(mode))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, body, err := client.Do(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		e.stats.IncrementErrors()
		if viaProxy != nil {
			e.pool.RecordFailure(viaProxy)
		}
		if isTimeout(err) {
			e.noteTimeout()
		}
		return Result{}, true, err
	}

	if viaProxy != nil {
		e.pool.RecordSuccess(viaProxy, elapsed)
	}
	e.limiter.OnResponse(resp.StatusCode, e.host)
	if resp.StatusCode == http.StatusTooManyRequests {
		e.stats.IncrementRateLimitHits()
	}

	result := e.classify(task, fullURL, resp, body, elapsed, mode)
	if result.Found {
		e.stats.IncrementFound()
	}
	return result, false, nil
}

// classify scores the response and fills in the probe result.
func (e *Engine) classify(task Task, fullURL string, resp *http.Response, body []byte, elapsed time.Duration, mode config.ModeProfile) Result {
	content := string(body)
	title := detection.ExtractTitle(content)
	confidence, _ := e.analyzer.Score(resp.StatusCode, content, title, fullURL, resp.Header)
	forms, inputs := detection.CountForms(content)

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	result := Result{
		URL:           fullURL,
		Path:          task.Path,
		StatusCode:    resp.StatusCode,
		Title:         title,
		Confidence:    confidence,
		HasLoginForm:  detection.HasLoginForm(content),
		Technologies:  detection.DetectTechnologies(resp.Header, content),
		Headers:       headers,
		Server:        resp.Header.Get("Server"),
		Forms:         forms,
		Inputs:        inputs,
		ContentLength: len(body),
		ResponseTime:  elapsed.Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	result.Found = confidence >= mode.ConfidenceThreshold &&
		resp.StatusCode != http.StatusNotFound &&
		resp.StatusCode != http.StatusTooManyRequests &&
		resp.StatusCode < 500

	return result
}

func (e *Engine) errorResult(task Task, err error) Result {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		URL:       strings.TrimSuffix(task.BaseURL, "/") + "/" + strings.TrimPrefix(task.Path, "/"),
		Path:      task.Path,
		Timestamp: time.Now().Format(time.RFC3339),
		Error:     msg,
	}
}

// clientFor returns the HTTP client routed through the given proxy,
// building and caching per-proxy clients lazily. A nil proxy means the
// direct client.
func (e *Engine) clientFor(p *proxy.Proxy, mode config.ModeProfile) (*transport.Client, error) {
	if p == nil {
		return e.direct, nil
	}

	addr := p.Address()

	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()

	if client, ok := e.clients[addr]; ok {
		return client, nil
	}

	connectTimeout := time.Duration(mode.ConnectTimeout) * time.Second
	rt, err := p.Transport(connectTimeout)
	if err != nil {
		return nil, err
	}
	client := transport.NewClient(transport.Options{
		ConnectTimeout: connectTimeout,
		ReadTimeout:    time.Duration(mode.ReadTimeout) * time.Second,
		MaxBodyMB:      e.cfg.MaxResponseMB,
		Transport:      rt,
	})
	e.clients[addr] = client
	return client, nil
}

func (e *Engine) userAgent(mode config.ModeProfile) string {
	agents := e.cfg.UserAgents
	if len(agents) == 0 {
		return "panelgrab"
	}
	if !mode.RandomUserAgents {
		return agents[0]
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return agents[e.rng.Intn(len(agents))]
}

// noteTimeout counts a timeout and, past the threshold, halves the
// worker window down to the floor.
func (e *Engine) noteTimeout() {
	e.stats.IncrementTimeouts()

	if atomic.AddInt64(&e.recentTimeouts, 1) <= config.MaxTimeoutThreshold {
		return
	}
	atomic.StoreInt64(&e.recentTimeouts, 0)

	for {
		current := atomic.LoadInt32(&e.allowedWorkers)
		next := current / 2
		if next < config.MinConcurrentTasks {
			next = config.MinConcurrentTasks
		}
		if next >= current {
			return
		}
		if atomic.CompareAndSwapInt32(&e.allowedWorkers, current, next) {
			e.logger.Warn("too many timeouts, reducing concurrency",
				"previous", current,
				"current", next,
			)
			return
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
