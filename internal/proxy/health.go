package proxy

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// CheckProxy probes the health-check URL through p and records the outcome
// exactly like normal traffic. The check is bounded by the pool's
// health-check timeout regardless of the proxy's behavior.
func (pl *Pool) CheckProxy(ctx context.Context, p *Proxy) bool {
	tr, err := p.Transport(pl.healthCheckTimeout)
	if err != nil {
		pl.RecordFailure(p)
		return false
	}

	client := &http.Client{
		Transport: tr,
		Timeout:   pl.healthCheckTimeout,
	}

	ctx, cancel := context.WithTimeout(ctx, pl.healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pl.healthCheckURL, nil)
	if err != nil {
		pl.RecordFailure(p)
		return false
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		pl.RecordFailure(p)
		pl.log.Debug("proxy health check failed", "address", p.Address(), "error", err)
		return false
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		pl.RecordFailure(p)
		return false
	}

	pl.RecordSuccess(p, time.Since(start))
	return true
}

// CheckAll probes every proxy concurrently and waits for all checks.
func (pl *Pool) CheckAll(ctx context.Context) {
	pl.mu.Lock()
	proxies := make([]*Proxy, len(pl.proxies))
	copy(proxies, pl.proxies)
	pl.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range proxies {
		wg.Add(1)
		go func(p *Proxy) {
			defer wg.Done()
			pl.CheckProxy(ctx, p)
		}(p)
	}
	wg.Wait()
}

// StartHealthMonitor runs periodic health checks until ctx is cancelled.
// The returned channel closes when the monitor has fully stopped.
func (pl *Pool) StartHealthMonitor(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(pl.healthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pl.CheckAll(ctx)
			}
		}
	}()

	return done
}
