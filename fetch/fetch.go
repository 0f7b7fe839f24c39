// Package fetch downloads catalog pages politely: one shared client, a
// request rate limit and a cap on body size.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrStatus is returned for non-200 responses.
	ErrStatus = errors.New("fetch: unexpected status")

	// ErrTooLarge is returned when a body exceeds Config.MaxBodyBytes.
	ErrTooLarge = errors.New("fetch: response body too large")
)

// Config configures a Client.
type Config struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	MaxBodyBytes      int64
}

// Page is a downloaded document.
type Page struct {
	URL  *url.URL
	Body []byte
}

// Reader returns the page body as an io.Reader.
func (p *Page) Reader() io.Reader { return bytes.NewReader(p.Body) }

// Client fetches pages.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

const (
	defaultTimeout = 30 * time.Second
	defaultMaxBody = 4 << 20
	defaultUA      = "godex/1.0 (+https://github.com/brunobiangulo/godex)"
)

// New creates a Client. A nil httpClient gets a fresh one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUA
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{cfg: cfg, client: httpClient, limiter: limiter}
}

// Get downloads rawURL after waiting for the rate limiter.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parsing url %q: %w", rawURL, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch: waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%w: %s returned %d", ErrStatus, u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: reading body: %w", u, err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, u, c.cfg.MaxBodyBytes)
	}

	// Relative links on the page resolve against the final URL.
	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	slog.Debug("fetch: page downloaded",
		"url", final.String(), "bytes", len(body),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return &Page{URL: final, Body: body}, nil
}

// CloseIdleConnections releases keep-alive connections held by the client.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}

// Resolve makes href absolute against base.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("fetch: parsing base %q: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("fetch: parsing href %q: %w", href, err)
	}
	return b.ResolveReference(ref).String(), nil
}
