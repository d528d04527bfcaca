// Package fetcher implements the HTTP-only acquisition path (stealth level 0).
// No browser, no JS — a single bounded GET shaped by DNA that produces a Response.
// Covers the large majority of targets.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wrenfield/greenlight/horosafe"
)

// Response is the outcome of an HTTP fetch, ready to become a RequestLog row.
type Response struct {
	Body           []byte
	Sufficient     bool // true if the HTML has enough content (no escalation needed)
	StatusCode     int
	ResponseHeader http.Header
	ContentType    string
	ETag           string
	LastMod        string
	TimingMs       int64
}

// Fetcher performs HTTP GETs shaped by DNA-supplied headers.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client (e.g. one dialing through a SOCKS5 proxy).
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Headers describes the DNA-shaped outbound header set for a single request.
// Ordered is the header-name sequence the caller must set in (network.headerOrder);
// Values is the name→value mapping (network.headers).
type Headers struct {
	Ordered []string
	Values  map[string]string
}

// Fetch GETs pageURL with headers set in the DNA-mandated order and returns a
// Response with a sufficiency signal. The context deadline governs the whole
// call (callers apply requestTimeoutMs as the context deadline).
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, hdrs Headers) (*Response, error) {
	if err := horosafe.ValidateURL(pageURL); err != nil {
		return nil, fmt.Errorf("fetcher: validate url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	for _, name := range hdrs.Ordered {
		if v, ok := hdrs.Values[name]; ok {
			req.Header.Set(name, v)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	body, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}
	timingMs := time.Since(start).Milliseconds()

	res := &Response{
		Body:           body,
		StatusCode:     resp.StatusCode,
		ResponseHeader: resp.Header,
		ContentType:    resp.Header.Get("Content-Type"),
		ETag:           resp.Header.Get("ETag"),
		LastMod:        resp.Header.Get("Last-Modified"),
		TimingMs:       timingMs,
		Sufficient:     IsSufficient(body),
	}

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "sufficient", res.Sufficient, "timing_ms", timingMs)

	return res, nil
}
