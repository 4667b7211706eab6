package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

const (
	// DefaultTimeout is the default HTTP request timeout. It is kept below
	// the crawler's per-task timeout so the transport gives up first.
	DefaultTimeout = 3 * time.Second
	// DefaultMaxBodySize is the default maximum response body size (2MB)
	DefaultMaxBodySize = 2 * 1024 * 1024
	// DefaultUserAgent is the default User-Agent header
	DefaultUserAgent = "sitecrawl/1.0"
)

// Client is an HTTP client with timeout and body size limits.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
}

// Config contains configuration options for the HTTP client.
type Config struct {
	// Timeout is the total request timeout (default: 3s)
	Timeout time.Duration
	// UserAgent is the User-Agent header to send (default: "sitecrawl/1.0")
	UserAgent string
	// MaxBodySize is the maximum response body size in bytes (default: 2MB)
	MaxBodySize int64
	// Transport overrides the underlying round tripper (default: http.DefaultTransport)
	Transport http.RoundTripper
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		userAgent:   cfg.UserAgent,
		maxBodySize: cfg.MaxBodySize,
	}
}

// Fetch retrieves the content from the given URL.
// Returns the fetch result (with final URL and content-type) and any error encountered.
// Sets User-Agent, enforces body size limits and respects context cancellation.
func (c *Client) Fetch(ctx context.Context, url string) (*crawler.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &crawler.HTTPError{
			StatusCode: resp.StatusCode,
			URL:        url,
		}
	}

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &crawler.FetchResult{
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
