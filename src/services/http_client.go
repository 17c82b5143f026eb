package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/username/bondflow/src/config"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	maxResponseBytes = 32 << 20
)

// ClientOptions bounds every call to an external source.
type ClientOptions struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

func ClientOptionsFromConfig(cfg *config.AppConfig) ClientOptions {
	return ClientOptions{
		Timeout:       cfg.HTTPTimeout,
		RatePerSecond: cfg.SourceRatePerSecond,
		Burst:         cfg.SourceRateBurst,
	}
}

func (o ClientOptions) limiter() *rate.Limiter {
	if o.RatePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := o.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RatePerSecond), burst)
}

// sourceClient is a rate-limited HTTP client with a session cookie jar.
// Transport failures and non-2xx answers wrap models.ErrExternalSource; 404
// wraps models.ErrNotFound.
type sourceClient struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    map[string]string
}

func newSourceClient(name string, opts ClientOptions, headers map[string]string) *sourceClient {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.OrDefault(nil).Error("Failed to create cookie jar", "source", name, "error", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &sourceClient{
		name:       name,
		httpClient: &http.Client{Jar: jar, Timeout: timeout},
		limiter:    opts.limiter(),
		headers:    headers,
	}
}

func (c *sourceClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.name, err)
	}
	return c.do(req)
}

func (c *sourceClient) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %s rate limiter: %v", models.ErrExternalSource, c.name, err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", browserUserAgent)
	}
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", models.ErrExternalSource, c.name, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", models.ErrExternalSource, c.name, err)
	}
	logger.OrDefault(nil).Debug("External call", "source", c.name, "path", req.URL.Path,
		"status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s returned 404", models.ErrNotFound, c.name, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s %s returned status %d: %s",
			models.ErrExternalSource, c.name, req.URL.Path, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func snippet(body []byte) string {
	const n = 200
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
