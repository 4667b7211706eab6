package crawler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cametumbling/sitecrawl/internal/crawler"
	"github.com/cametumbling/sitecrawl/internal/platform/htmlparser"
	"github.com/cametumbling/sitecrawl/internal/platform/httpclient"
)

// TestIntegration_FullCrawl tests the complete crawl flow with a real HTTP server.
// It verifies:
// - Cycle handling (pages linking to each other)
// - Relative link resolution
// - Fragment and query stripping
// - External links recorded but not followed
// - Redirect handling
// - Non-HTML content and 404s counted as failures
// - At-most-once fetching
func TestIntegration_FullCrawl(t *testing.T) {
	// Site graph:
	//
	//   /  (root)
	//   ├── /page1 (links back to /, creating cycle)
	//   ├── /page2#intro
	//   │     └── page3.html (relative)
	//   ├── /redirect -> /page1 (HTTP redirect)
	//   ├── /document.pdf (non-HTML)
	//   ├── /missing (404)
	//   └── https://external.example/ (out of scope)

	var mu sync.Mutex
	hits := make(map[string]int)

	mux := http.NewServeMux()
	page := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			mu.Lock()
			hits[path]++
			mu.Unlock()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, body)
		})
	}

	page("/", `<!DOCTYPE html><html><body>
		<a href="/page1">Page 1</a>
		<a href="/page1#section">Page 1 again</a>
		<a href="/page2#intro">Page 2</a>
		<a href="/page2?ref=home">Page 2 again</a>
		<a href="/redirect">Redirect</a>
		<a href="/document.pdf">PDF</a>
		<a href="/missing">Missing</a>
		<a href="https://external.example/">External</a>
		<a href="mailto:team@example.com">Mail</a>
	</body></html>`)
	page("/page1", `<html><body><a href="/">Home</a></body></html>`)
	page("/page2", `<html><body><a href="page3.html">Page 3</a></body></html>`)
	page("/page3.html", `<html><body><a href="/page2/">Back</a></body></html>`)
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page1", http.StatusFound)
	})
	mux.HandleFunc("/document.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := crawler.NewLinkFetcher(
		httpclient.New(httpclient.Config{Timeout: 2 * time.Second}),
		htmlparser.Parser{},
	)
	session, err := crawler.NewSession(fetcher, crawler.Options{
		Concurrency:  3,
		PollInterval: 5 * time.Millisecond,
	}, crawler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := session.Crawl(ctx, server.URL+"/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	var got []string
	for _, p := range result.Pages {
		got = append(got, p.URL().String())
	}
	sort.Strings(got)

	want := []string{
		server.URL,
		server.URL + "/page1",
		server.URL + "/page2",
		server.URL + "/page3.html",
		server.URL + "/redirect",
	}
	if len(got) != len(want) {
		t.Fatalf("visited = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("visited[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if result.Stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2 (pdf and 404)", result.Stats.Failed)
	}
	if result.Partial {
		t.Error("Partial = true for an exhausted crawl")
	}

	root, err := crawler.ParseRoot(server.URL)
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	for _, p := range result.Pages {
		if p.URL() != root {
			continue
		}
		external, _ := crawler.ParseRoot("https://external.example/")
		if !p.HasLink(external) {
			t.Error("root page does not record the external link")
		}
		// page1, page2, redirect, pdf, missing, external
		if p.LinkCount() != 6 {
			t.Errorf("root LinkCount() = %d, want 6: %v", p.LinkCount(), p.Links())
		}
	}

	mu.Lock()
	defer mu.Unlock()
	// /page1 is requested once directly and once through /redirect.
	if hits["/page1"] != 2 {
		t.Errorf("/page1 served %d times, want 2", hits["/page1"])
	}
	for _, path := range []string{"/", "/page2", "/page3.html"} {
		if hits[path] != 1 {
			t.Errorf("%s served %d times, want 1", path, hits[path])
		}
	}
}

// TestIntegration_EmptyPages verifies that successful HTML responses with no
// body or no anchors are visited with zero links rather than counted as failures.
func TestIntegration_EmptyPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body><a href="/empty">Empty</a><a href="/plain">Plain</a></body></html>`)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><body><p>No links here.</p></body></html>`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := crawler.NewLinkFetcher(
		httpclient.New(httpclient.Config{Timeout: 2 * time.Second}),
		htmlparser.Parser{},
	)
	session, err := crawler.NewSession(fetcher, crawler.Options{
		Concurrency:  2,
		PollInterval: 5 * time.Millisecond,
	}, crawler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := session.Crawl(ctx, server.URL+"/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if result.Stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", result.Stats.Failed)
	}
	if len(result.Pages) != 3 {
		t.Fatalf("visited %d pages, want 3", len(result.Pages))
	}

	for _, path := range []string{"/empty", "/plain"} {
		target, err := crawler.ParseRoot(server.URL + path)
		if err != nil {
			t.Fatalf("ParseRoot(%s) error = %v", path, err)
		}
		found := false
		for _, p := range result.Pages {
			if p.URL() != target {
				continue
			}
			found = true
			if p.LinkCount() != 0 {
				t.Errorf("%s LinkCount() = %d, want 0", path, p.LinkCount())
			}
		}
		if !found {
			t.Errorf("%s not visited", path)
		}
	}
}
