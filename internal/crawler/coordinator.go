package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultConcurrency is the default worker pool size.
	DefaultConcurrency = 5
	// DefaultTaskTimeout bounds a single fetch-and-parse task.
	DefaultTaskTimeout = 5 * time.Second
	// DefaultPollInterval is how long the drain loop waits on an empty queue
	// before re-checking for termination.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultShutdownGrace is how long Run waits for straggling tasks.
	DefaultShutdownGrace = time.Second
)

// ErrCoordinatorReused is returned by Run on a Coordinator that already ran.
var ErrCoordinatorReused = errors.New("coordinator can only run once")

// Coordinator is the brain of the crawler.
// It owns the work queue, the seen and visited registries and the bounded
// worker pool, and makes every scheduling decision. Registries live on the
// Coordinator, so independent crawls never share state.
type Coordinator struct {
	// queue holds URLs awaiting dispatch
	queue *WorkQueue
	// seen tracks URLs ever admitted to queue (dedupe)
	seen *SeenSet
	// visited holds records of successfully fetched pages
	visited *VisitedMap
	// counters track progress
	counters Counters

	worker        worker
	concurrency   int
	taskTimeout   time.Duration
	pollInterval  time.Duration
	shutdownGrace time.Duration

	logger   *slog.Logger
	recorder Recorder

	// root is the crawl root; only same-host links are enqueued
	root CanonicalURL

	started     atomic.Bool
	interrupted atomic.Bool
}

// Config contains configuration for the Coordinator.
type Config struct {
	// Fetcher returns the links of a page (required)
	Fetcher PageFetcher
	// Concurrency is the worker pool size (default: DefaultConcurrency)
	Concurrency int
	// TaskTimeout bounds each task (default: DefaultTaskTimeout)
	TaskTimeout time.Duration
	// PollInterval is the drain loop's bounded wait (default: DefaultPollInterval)
	PollInterval time.Duration
	// ShutdownGrace bounds the wait for stragglers (default: DefaultShutdownGrace)
	ShutdownGrace time.Duration
	// Logger receives progress and failure logs (default: slog.Default())
	Logger *slog.Logger
	// Recorder observes progress (optional)
	Recorder Recorder
}

// NewCoordinator creates a new Coordinator with the given configuration.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("coordinator requires a page fetcher")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("invalid concurrency %d", cfg.Concurrency)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	return &Coordinator{
		queue:         NewWorkQueue(),
		seen:          NewSeenSet(),
		visited:       NewVisitedMap(),
		worker:        worker{fetcher: cfg.Fetcher, logger: cfg.Logger},
		concurrency:   cfg.Concurrency,
		taskTimeout:   cfg.TaskTimeout,
		pollInterval:  cfg.PollInterval,
		shutdownGrace: cfg.ShutdownGrace,
		logger:        cfg.Logger,
		recorder:      cfg.Recorder,
	}, nil
}

// Run crawls from root and blocks until the queue is drained and no task is
// in flight, or ctx is done. It returns the records of every page fetched,
// in completion order. Cancelling ctx stops new dispatch; tasks already
// running get a short grace period and are then abandoned.
func (c *Coordinator) Run(ctx context.Context, root CanonicalURL) ([]PageRecord, error) {
	if root.IsZero() {
		return nil, ErrInvalidRoot
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrCoordinatorReused
	}

	startTime := time.Now()
	c.root = root
	c.admit(root)

	pool := semaphore.NewWeighted(int64(c.concurrency))
	var tasks sync.WaitGroup

	for {
		// In-flight must be read before the queue length: a task pushes its
		// children before it leaves the in-flight count.
		if c.counters.inFlight.Load() == 0 && c.queue.Len() == 0 {
			break
		}
		if ctx.Err() != nil {
			c.interrupt(ctx)
			break
		}

		u, ok := c.queue.Poll(ctx, c.pollInterval)
		if !ok {
			continue
		}

		if err := pool.Acquire(ctx, 1); err != nil {
			// ctx is done; u stays seen but is never fetched.
			c.interrupt(ctx)
			break
		}

		// Counted here rather than in the task so the termination check can
		// never miss a dispatched task that has not started yet.
		c.counters.inFlight.Add(1)
		c.recorder.JobStarted()

		tasks.Add(1)
		go func() {
			defer tasks.Done()
			defer pool.Release(1)
			c.runTask(ctx, u)
		}()
	}

	c.awaitStragglers(&tasks)
	pages := c.visited.Seal()

	stats := c.counters.Snapshot()
	c.logger.Info("crawl completed",
		"root", root.String(),
		"duration", time.Since(startTime),
		"processed", len(pages),
		"failed", stats.Failed,
		"seen", c.seen.Len(),
	)

	return pages, nil
}

// runTask fetches u under the per-task timeout and records the outcome.
// The task's deadline is detached from session cancellation: stopping the
// session stops dispatch, not fetches already under way.
func (c *Coordinator) runTask(ctx context.Context, u CanonicalURL) {
	start := time.Now()

	taskCtx, cancel := context.WithTimeoutCause(context.WithoutCancel(ctx), c.taskTimeout, ErrTaskTimeout)
	defer cancel()

	rec, err := c.worker.process(taskCtx, u)
	if err != nil {
		c.counters.failed.Add(1)
		c.logFailure(err)
	} else if c.visited.Add(rec) {
		for _, link := range rec.links {
			if link.SameHost(c.root) {
				c.admit(link)
			}
		}
	} else {
		c.logger.Debug("discarding late result", "url", u.String())
	}

	// Children are queued above, before in-flight drops.
	c.counters.inFlight.Add(-1)
	c.counters.completed.Add(1)
	c.recorder.JobFinished(time.Since(start), err)
	c.logStatus()
}

// admit enqueues u unless it has been seen before.
func (c *Coordinator) admit(u CanonicalURL) {
	if !c.seen.MarkIfAbsent(u) {
		return
	}
	c.counters.submitted.Add(1)
	c.recorder.JobSubmitted()
	c.queue.Push(u)
}

// interrupt records that dispatch stopped before the crawl was exhausted.
func (c *Coordinator) interrupt(ctx context.Context) {
	c.interrupted.Store(true)
	c.logger.Warn("crawl interrupted, no further dispatch", "reason", context.Cause(ctx))
}

// awaitStragglers waits up to the grace period for running tasks.
func (c *Coordinator) awaitStragglers(tasks *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		tasks.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.shutdownGrace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn("abandoning straggling tasks",
			"in_flight", c.counters.inFlight.Load(),
			"grace", c.shutdownGrace,
		)
	}
}

// logFailure logs a failed task with its category.
func (c *Coordinator) logFailure(err error) {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		c.logger.Warn("failed to fetch", "url", fetchErr.URL, "category", fetchErr.Category(), "error", fetchErr.Err)
		return
	}
	c.logger.Warn("task failed", "error", err)
}

// logStatus logs the progress line.
func (c *Coordinator) logStatus() {
	stats := c.counters.Snapshot()
	c.logger.Debug("crawl status",
		"total", stats.Submitted,
		"crawls", stats.Completed,
		"failures", stats.Failed,
		"successes", stats.Succeeded(),
		"remaining", stats.InFlight+int64(c.queue.Len()),
	)
}

// Stats returns a snapshot of the progress counters.
func (c *Coordinator) Stats() Stats {
	return c.counters.Snapshot()
}

// SeenCount returns the number of distinct URLs admitted to the queue.
func (c *Coordinator) SeenCount() int {
	return c.seen.Len()
}

// Interrupted reports whether the last Run stopped because its context was
// done rather than because the crawl was exhausted.
func (c *Coordinator) Interrupted() bool {
	return c.interrupted.Load()
}
