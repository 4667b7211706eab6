package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskTimeout is wrapped by a FetchError when a worker exceeds the
	// per-task budget.
	ErrTaskTimeout = errors.New("task timeout exceeded")

	// ErrSessionTimeout is the cancellation cause of a session whose overall
	// deadline elapsed. It is never returned to callers; see Result.TimedOut.
	ErrSessionTimeout = errors.New("session timeout exceeded")

	// ErrUnsupportedContentType is returned by fetchers for responses that
	// are not text, HTML or XML.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrInvalidRoot is returned when a crawl is started with a root URL that
	// is not an absolute http or https URL.
	ErrInvalidRoot = errors.New("invalid root URL")
)

// HTTPError represents a non-2xx response from a fetch.
type HTTPError struct {
	StatusCode int
	URL        string
}

// Error returns a short description such as "not found (404)".
func (e *HTTPError) Error() string {
	switch {
	case e.StatusCode == 404:
		return fmt.Sprintf("not found (%d)", e.StatusCode)
	case e.StatusCode >= 500:
		return fmt.Sprintf("server error (%d)", e.StatusCode)
	case e.StatusCode >= 400:
		return fmt.Sprintf("client error (%d)", e.StatusCode)
	case e.StatusCode >= 300:
		return fmt.Sprintf("redirect not followed (%d)", e.StatusCode)
	default:
		return fmt.Sprintf("unexpected status (%d)", e.StatusCode)
	}
}

// Category groups the status for logging.
func (e *HTTPError) Category() string {
	switch e.StatusCode {
	case 404, 410:
		return "dead link"
	case 408, 504:
		return "timeout"
	case 500, 502, 503:
		return "server error"
	default:
		return "http error"
	}
}

// FetchError is the failure of a single crawl task. The URL is counted as a
// failed job and never enters the visited map.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Category classifies the failure for logging.
func (e *FetchError) Category() string {
	var httpErr *HTTPError
	switch {
	case errors.As(e.Err, &httpErr):
		return httpErr.Category()
	case errors.Is(e.Err, ErrTaskTimeout):
		return "task timeout"
	case errors.Is(e.Err, ErrUnsupportedContentType):
		return "unsupported content"
	default:
		return "network error"
	}
}

// ScopeError reports an href that is out of scope for crawling: it does not
// parse, or it resolves to something other than an http(s) URL with a host.
// Scope errors are dropped, never counted as failures.
type ScopeError struct {
	Href   string
	Reason string
	Err    error
}

func (e *ScopeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("out of scope %q: %s: %v", e.Href, e.Reason, e.Err)
	}
	return fmt.Sprintf("out of scope %q: %s", e.Href, e.Reason)
}

func (e *ScopeError) Unwrap() error {
	return e.Err
}
