// Package httpx is the HTTP transport for IPFS gateway reads and pinning uploads.
package httpx

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/version"
)

// Observer receives one call per request, after the last attempt.
type Observer func(call string, elapsed time.Duration, err error)

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
	observe    Observer
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  version.UserAgent(),
	}
}

// WithObserver returns a copy of c that reports every request to observe.
func (c *Client) WithObserver(observe Observer) *Client {
	cp := *c
	cp.observe = observe
	return &cp
}

// Do sends req with retries on transport errors, 429 and 5xx, and returns the body
// of the first 2xx response. Requests with a body must set GetBody to be retried.
func (c *Client) Do(ctx context.Context, req *http.Request) ([]byte, http.Header, error) {
	started := time.Now()
	buf, header, err := c.do(ctx, req)
	if c.observe != nil {
		c.observe("http:"+req.URL.Host, time.Since(started), err)
	}
	return buf, header, err
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, http.Header, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	host := req.URL.Host

	replayable := req.Body == nil || req.GetBody != nil
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, clierr.Wrap(clierr.CodeUnavailable, "request to "+host+" cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		attemptReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, nil, clierr.Wrap(clierr.CodeInternal, "clone request body", err)
			}
			attemptReq.Body = body
		}

		resp, err := c.httpClient.Do(attemptReq)
		if err != nil {
			lastErr = mapNetError(host, err)
			if attempt < c.retries && replayable {
				continue
			}
			return nil, nil, lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.Header, clierr.Wrap(clierr.CodeUnavailable, "read response from "+host, readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = clierr.New(clierr.CodeRateLimited, host+" rate limited the request")
			if attempt < c.retries && replayable {
				continue
			}
			return nil, resp.Header, lastErr
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, resp.Header, clierr.New(clierr.CodeAuth, host+" rejected the credentials")
		case resp.StatusCode == http.StatusNotFound:
			return nil, resp.Header, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("%s: %s not found", host, req.URL.Path))
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = clierr.New(clierr.CodeUnavailable, fmt.Sprintf("%s unavailable (status %d)", host, resp.StatusCode))
			if attempt < c.retries && replayable {
				continue
			}
			return nil, resp.Header, lastErr
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, resp.Header, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("%s returned unexpected status %d", host, resp.StatusCode))
		}
		return buf, resp.Header, nil
	}

	if lastErr != nil {
		return nil, nil, lastErr
	}
	return nil, nil, clierr.New(clierr.CodeUnavailable, "request to "+host+" failed")
}

// Get fetches url and returns the raw body.
func Get(ctx context.Context, c *Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "build request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	buf, _, err := c.Do(ctx, req)
	return buf, err
}

func mapNetError(host string, err error) error {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeUnavailable, host+" timed out", err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, "request to "+host+" failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
