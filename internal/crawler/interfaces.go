package crawler

import (
	"context"
	"io"
	"time"
)

// FetchResult contains the result of an HTTP fetch operation.
type FetchResult struct {
	// Body is the response body content
	Body []byte
	// FinalURL is the URL after following redirects
	FinalURL string
	// ContentType is the Content-Type header value
	ContentType string
}

// Fetcher is the interface for fetching HTTP content.
// This abstraction allows for testing with mock implementations.
type Fetcher interface {
	// Fetch retrieves the content from the given URL.
	// The context can be used for cancellation and timeouts.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Parser is the interface for parsing HTML and extracting links.
type Parser interface {
	// ExtractLinks parses HTML and returns all href attributes from <a> tags.
	// Returns raw href strings exactly as they appear in the HTML.
	ExtractLinks(r io.Reader, contentType string) ([]string, error)
}

// PageFetcher returns the hyperlink targets found on a page.
// It is the only collaborator the crawl engine talks to.
type PageFetcher interface {
	// FetchLinks returns the absolute URLs of every hyperlink on the page at
	// url, in document order. It fails on network errors, non-2xx statuses
	// and unsupported content types.
	FetchLinks(ctx context.Context, url string) ([]string, error)
}

// PageFetcherFunc adapts a function to the PageFetcher interface.
type PageFetcherFunc func(ctx context.Context, url string) ([]string, error)

// FetchLinks calls f(ctx, url).
func (f PageFetcherFunc) FetchLinks(ctx context.Context, url string) ([]string, error) {
	return f(ctx, url)
}

// Recorder observes crawl progress. Implementations must be safe for
// concurrent use; the metrics package provides a Prometheus-backed one.
type Recorder interface {
	// JobSubmitted is called once per URL admitted to the work queue.
	JobSubmitted()
	// JobStarted is called when a URL is dispatched to the worker pool.
	JobStarted()
	// JobFinished is called when a dispatched task completes. err is nil on
	// success.
	JobFinished(elapsed time.Duration, err error)
	// SessionFinished is called once at the end of every session.
	SessionFinished(elapsed time.Duration, pages int, timedOut bool)
}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted() {}
func (nopRecorder) JobStarted() {}
func (nopRecorder) JobFinished(time.Duration, error) {}
func (nopRecorder) SessionFinished(time.Duration, int, bool) {}
