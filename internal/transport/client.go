// Package transport wraps net/http with the timeouts, redirect policy and
// response-size cap every probe shares. Retry and rate limiting live in the
// orchestrator and ratelimit packages, not here.
package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"
)

// Client issues single HTTP requests. Safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

// Options configures a Client.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxBodyMB      int
	VerifySSL      bool
	// Transport overrides the default transport, used to route a request
	// through a proxy. Timeouts above still apply.
	Transport *http.Transport
}

// NewClient builds a Client. Redirects are not followed: a 301/302 on a
// candidate path is itself a signal and must surface as-is.
func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.MaxBodyMB <= 0 {
		opts.MaxBodyMB = 10
	}

	tr := opts.Transport
	if tr == nil {
		tr = &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   opts.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		}
	}
	tr.ResponseHeaderTimeout = opts.ReadTimeout
	if !opts.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
			Transport: tr,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBodyBytes: int64(opts.MaxBodyMB) * 1024 * 1024,
	}
}

// Do executes one request and returns the response with its body read up to
// the configured cap. The body is already closed on return.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, nil, err
	}

	return resp, body, nil
}

// HTTPClient exposes the underlying client for collaborators that need it.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
