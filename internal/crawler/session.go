package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTimeout bounds a whole crawl.
const DefaultSessionTimeout = 2 * time.Minute

// Options configures a Session.
type Options struct {
	// Concurrency is the worker pool size.
	Concurrency int
	// TaskTimeout bounds each fetch-and-parse task.
	TaskTimeout time.Duration
	// SessionTimeout bounds the whole crawl; on expiry partial results are
	// returned.
	SessionTimeout time.Duration
	// PollInterval is the drain loop's bounded wait on an empty queue.
	PollInterval time.Duration
	// ShutdownGrace bounds the wait for straggling tasks.
	ShutdownGrace time.Duration
}

// DefaultOptions returns the default session options.
func DefaultOptions() Options {
	return Options{
		Concurrency:    DefaultConcurrency,
		TaskTimeout:    DefaultTaskTimeout,
		SessionTimeout: DefaultSessionTimeout,
		PollInterval:   DefaultPollInterval,
		ShutdownGrace:  DefaultShutdownGrace,
	}
}

// Result is the outcome of one crawl session.
type Result struct {
	// ID identifies the session.
	ID string
	// Root is the canonical root URL.
	Root CanonicalURL
	// Pages holds every successfully fetched page in completion order.
	Pages []PageRecord
	// Stats is the final counter snapshot.
	Stats Stats
	// Seen is the number of distinct same-host URLs admitted to the queue.
	Seen int
	// StartedAt and FinishedAt bound the session.
	StartedAt  time.Time
	FinishedAt time.Time
	// Partial is set when the crawl stopped before the queue was exhausted.
	Partial bool
	// TimedOut is set when the session deadline caused the stop.
	TimedOut bool
}

// Duration returns how long the session ran.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Session runs crawls with a fixed configuration. Each call to Crawl gets
// its own Coordinator and registries; a Session is safe for concurrent use.
type Session struct {
	fetcher  PageFetcher
	opts     Options
	logger   *slog.Logger
	recorder Recorder
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger used by the session and its coordinators.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRecorder sets the progress recorder.
func WithRecorder(recorder Recorder) SessionOption {
	return func(s *Session) {
		s.recorder = recorder
	}
}

// NewSession creates a Session. Zero-valued options fall back to defaults;
// negative values are rejected.
func NewSession(fetcher PageFetcher, opts Options, sessionOpts ...SessionOption) (*Session, error) {
	if fetcher == nil {
		return nil, errors.New("session requires a page fetcher")
	}
	if opts.Concurrency < 0 || opts.TaskTimeout < 0 || opts.SessionTimeout < 0 ||
		opts.PollInterval < 0 || opts.ShutdownGrace < 0 {
		return nil, fmt.Errorf("invalid session options: %+v", opts)
	}

	defaults := DefaultOptions()
	if opts.Concurrency == 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.TaskTimeout == 0 {
		opts.TaskTimeout = defaults.TaskTimeout
	}
	if opts.SessionTimeout == 0 {
		opts.SessionTimeout = defaults.SessionTimeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.ShutdownGrace == 0 {
		opts.ShutdownGrace = defaults.ShutdownGrace
	}

	s := &Session{
		fetcher:  fetcher,
		opts:     opts,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range sessionOpts {
		opt(s)
	}
	return s, nil
}

// Options returns the effective options.
func (s *Session) Options() Options {
	return s.opts
}

// Crawl crawls the host of rootURL. If the session deadline elapses first,
// the pages collected so far are returned with Result.TimedOut set; that is
// not an error. Errors are returned only for an invalid root or when the
// crawl cannot be set up.
func (s *Session) Crawl(ctx context.Context, rootURL string) (*Result, error) {
	root, err := ParseRoot(rootURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	id := uuid.NewString()
	logger := s.logger.With("session", id)

	coord, err := NewCoordinator(Config{
		Fetcher:       s.fetcher,
		Concurrency:   s.opts.Concurrency,
		TaskTimeout:   s.opts.TaskTimeout,
		PollInterval:  s.opts.PollInterval,
		ShutdownGrace: s.opts.ShutdownGrace,
		Logger:        logger,
		Recorder:      s.recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}

	runCtx, cancel := context.WithTimeoutCause(ctx, s.opts.SessionTimeout, ErrSessionTimeout)
	defer cancel()

	logger.Info("crawl started", "root", root.String(), "concurrency", s.opts.Concurrency)
	started := time.Now()

	pages, err := coord.Run(runCtx, root)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:         id,
		Root:       root,
		Pages:      pages,
		Stats:      coord.Stats(),
		Seen:       coord.SeenCount(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Partial:    coord.Interrupted(),
	}
	result.TimedOut = result.Partial && errors.Is(context.Cause(runCtx), ErrSessionTimeout)

	if result.TimedOut {
		logger.Warn("session timeout reached, returning partial results",
			"timeout", s.opts.SessionTimeout,
			"pages", len(pages),
		)
	}
	s.recorder.SessionFinished(result.Duration(), len(pages), result.TimedOut)

	return result, nil
}
