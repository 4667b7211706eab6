package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingRecorder counts Recorder callbacks.
type countingRecorder struct {
	mu        sync.Mutex
	submitted int
	started   int
	finished  int
	failed    int
	sessions  int
	timedOut  bool
	pages     int
}

func (r *countingRecorder) JobSubmitted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted++
}

func (r *countingRecorder) JobStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *countingRecorder) JobFinished(_ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	if err != nil {
		r.failed++
	}
}

func (r *countingRecorder) SessionFinished(_ time.Duration, pages int, timedOut bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++
	r.pages = pages
	r.timedOut = timedOut
}

func newTestSession(t *testing.T, fetcher PageFetcher, opts Options, extra ...SessionOption) *Session {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	s, err := NewSession(fetcher, opts, append([]SessionOption{WithLogger(discardLogger())}, extra...)...)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func TestNewSession_Options(t *testing.T) {
	fetcher := newMockPageFetcher(nil)

	s, err := NewSession(fetcher, Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	got := s.Options()
	want := DefaultOptions()
	want.Concurrency = 2
	if got != want {
		t.Errorf("Options() = %+v, want %+v", got, want)
	}

	if _, err := NewSession(fetcher, Options{TaskTimeout: -time.Second}); err == nil {
		t.Error("NewSession() accepted a negative task timeout")
	}
	if _, err := NewSession(nil, Options{}); err == nil {
		t.Error("NewSession() accepted a nil fetcher")
	}
}

func TestSession_CrawlInvalidRoot(t *testing.T) {
	s := newTestSession(t, newMockPageFetcher(nil), Options{})

	for _, raw := range []string{"", "example.com", "/about", "ftp://example.com", "mailto:a@example.com"} {
		t.Run(raw, func(t *testing.T) {
			_, err := s.Crawl(context.Background(), raw)
			if !errors.Is(err, ErrInvalidRoot) {
				t.Errorf("Crawl(%q) error = %v, want ErrInvalidRoot", raw, err)
			}
		})
	}
}

func TestSession_Crawl(t *testing.T) {
	fetcher := newMockPageFetcher(map[string][]string{
		"https://a.com":      {"https://a.com/help", "https://a.com/missing", "https://b.com"},
		"https://a.com/help": {"https://a.com"},
	})
	recorder := &countingRecorder{}
	s := newTestSession(t, fetcher, Options{Concurrency: 2}, WithRecorder(recorder))

	result, err := s.Crawl(context.Background(), "https://a.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if result.ID == "" {
		t.Error("Result.ID is empty")
	}
	if result.Root.String() != "https://a.com" {
		t.Errorf("Result.Root = %s", result.Root)
	}
	if len(result.Pages) != 2 {
		t.Errorf("len(Pages) = %d, want 2", len(result.Pages))
	}
	if result.Seen != 3 {
		t.Errorf("Seen = %d, want 3", result.Seen)
	}
	if result.Stats.Failed != 1 || result.Stats.Completed != 3 {
		t.Errorf("Stats = %+v", result.Stats)
	}
	if result.Partial || result.TimedOut {
		t.Errorf("Partial = %v, TimedOut = %v for an exhausted crawl", result.Partial, result.TimedOut)
	}
	if result.Duration() < 0 {
		t.Errorf("Duration() = %v", result.Duration())
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.submitted != 3 || recorder.started != 3 || recorder.finished != 3 || recorder.failed != 1 {
		t.Errorf("recorder = %+v", recorder)
	}
	if recorder.sessions != 1 || recorder.pages != 2 || recorder.timedOut {
		t.Errorf("recorder session = %+v", recorder)
	}
}

func TestSession_IndependentCrawls(t *testing.T) {
	fetcher := newMockPageFetcher(map[string][]string{
		"https://a.com":   {"https://a.com/x"},
		"https://a.com/x": {},
	})
	s := newTestSession(t, fetcher, Options{})

	first, err := s.Crawl(context.Background(), "https://a.com")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	second, err := s.Crawl(context.Background(), "https://a.com")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if len(first.Pages) != 2 || len(second.Pages) != 2 {
		t.Errorf("pages = %d then %d, want 2 each", len(first.Pages), len(second.Pages))
	}
	if first.ID == second.ID {
		t.Error("sessions share an ID")
	}
	if n := fetcher.callCount("https://a.com/x"); n != 2 {
		t.Errorf("/x fetched %d times across two sessions, want 2", n)
	}
}

func TestSession_TimeoutReturnsPartialResult(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	fetcher := newMockPageFetcher(nil)
	fetcher.fn = func(_ context.Context, url string) ([]string, error) {
		if url == "https://a.com" {
			return []string{"https://a.com/fast", "https://a.com/stuck"}, nil
		}
		if url == "https://a.com/fast" {
			return nil, nil
		}
		<-release
		return nil, nil
	}
	recorder := &countingRecorder{}
	s := newTestSession(t, fetcher, Options{
		Concurrency:    2,
		SessionTimeout: 100 * time.Millisecond,
		ShutdownGrace:  20 * time.Millisecond,
	}, WithRecorder(recorder))

	start := time.Now()
	result, err := s.Crawl(context.Background(), "https://a.com")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Crawl() took %v, want about the session timeout", elapsed)
	}
	if !result.Partial || !result.TimedOut {
		t.Errorf("Partial = %v, TimedOut = %v, want both true", result.Partial, result.TimedOut)
	}
	byURL := pageURLs(result.Pages)
	if len(byURL) != 2 {
		t.Errorf("Pages = %v, want root and /fast", result.Pages)
	}
	if _, ok := byURL["https://a.com/stuck"]; ok {
		t.Error("stuck page present in results")
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !recorder.timedOut {
		t.Error("recorder did not see the timeout")
	}
}

func TestSession_CallerCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := newMockPageFetcher(nil)
	fetcher.fn = func(_ context.Context, url string) ([]string, error) {
		cancel()
		return []string{url + "/child"}, nil
	}
	s := newTestSession(t, fetcher, Options{Concurrency: 1, ShutdownGrace: 20 * time.Millisecond})

	result, err := s.Crawl(ctx, "https://a.com")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if !result.Partial {
		t.Error("Partial = false after caller cancellation")
	}
	if result.TimedOut {
		t.Error("TimedOut = true after caller cancellation")
	}
}
