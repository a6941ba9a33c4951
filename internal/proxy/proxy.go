// Package proxy implements the rotating upstream proxy pool: URL parsing and
// scheme validation, per-proxy health statistics, selection strategies, and a
// cancellable background health monitor.
package proxy

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// supportedSchemes is the closed set of proxy protocols the pool accepts.
var supportedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks4": true,
	"socks5": true,
}

// Stats tracks one proxy's traffic history. All fields are guarded by the
// owning pool's mutex.
type Stats struct {
	Total               int64
	Success             int64
	Failure             int64
	TotalLatency        time.Duration
	LastUsed            time.Time
	LastSuccess         time.Time
	LastFailure         time.Time
	ConsecutiveFailures int
	Healthy             bool
}

// SuccessRate returns successes over total requests, 0 when unused.
func (s *Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total)
}

// AvgLatency returns the mean latency of successful requests; +Inf when the
// proxy has never succeeded, so performance selection ranks it last.
func (s *Stats) AvgLatency() float64 {
	if s.Success == 0 {
		return math.Inf(1)
	}
	return s.TotalLatency.Seconds() / float64(s.Success)
}

// Proxy is one upstream entry. Created once at pool construction and shared
// by every task; only its Stats mutate afterwards.
type Proxy struct {
	URL      string
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string

	Stats Stats

	// The transport is built lazily on first use and then shared. Scan
	// workers and the health monitor both reach it, so the build is
	// guarded by its own mutex rather than the pool's.
	transportMu sync.Mutex
	transport   *http.Transport
}

// Parse validates and decomposes a proxy URL. Scheme must be one of
// http, https, socks4, socks5.
func Parse(rawURL string) (*Proxy, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !supportedSchemes[scheme] {
		return nil, fmt.Errorf("unsupported proxy scheme %q (supported: http, https, socks4, socks5)", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("proxy URL %q missing host", rawURL)
	}

	port := 0
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy port in %q: %w", rawURL, err)
		}
	} else {
		switch scheme {
		case "http":
			port = 80
		case "https":
			port = 443
		default:
			port = 1080
		}
	}

	p := &Proxy{
		URL:    rawURL,
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Stats:  Stats{Healthy: true},
	}
	if parsed.User != nil {
		p.Username = parsed.User.Username()
		p.Password, _ = parsed.User.Password()
	}

	return p, nil
}

// Address returns host:port.
func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Transport returns (building lazily) an http.Transport that routes through
// this proxy. HTTP/HTTPS proxies use CONNECT via http.ProxyURL; SOCKS
// proxies dial through golang.org/x/net/proxy.
func (p *Proxy) Transport(dialTimeout time.Duration) (*http.Transport, error) {
	p.transportMu.Lock()
	defer p.transportMu.Unlock()

	if p.transport != nil {
		return p.transport, nil
	}

	tr := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	switch p.Scheme {
	case "http", "https":
		u, err := url.Parse(p.URL)
		if err != nil {
			return nil, err
		}
		tr.Proxy = http.ProxyURL(u)
		tr.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	case "socks4", "socks5":
		dialer, err := p.socksDialer(dialTimeout)
		if err != nil {
			return nil, err
		}
		tr.DialContext = dialer
	}

	p.transport = tr
	return tr, nil
}

type dialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func (p *Proxy) socksDialer(timeout time.Duration) (dialContextFunc, error) {
	if p.Scheme == "socks4" {
		d := &socks4Dialer{
			proxyAddr: p.Address(),
			userID:    p.Username,
			dialer:    &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second},
		}
		return d.DialContext, nil
	}

	u := &url.URL{Scheme: p.Scheme, Host: p.Address()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}

	dialer, err := xproxy.FromURL(u, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("building SOCKS dialer for %s: %w", p.Address(), err)
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		// x/net/proxy dialers predate contexts; honor cancellation by
		// racing the dial against ctx, closing the conn on a late win.
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}

		type dialResult struct {
			conn net.Conn
			err  error
		}
		ch := make(chan dialResult, 1)
		go func() {
			conn, err := dialer.Dial(network, addr)
			select {
			case ch <- dialResult{conn, err}:
			case <-ctx.Done():
				if conn != nil {
					conn.Close()
				}
			}
		}()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			return r.conn, r.err
		}
	}, nil
}
