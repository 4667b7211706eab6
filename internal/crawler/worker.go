package crawler

import (
	"context"
	"fmt"
	"log/slog"
)

// worker fetches one URL and turns its links into a PageRecord.
// It never touches the queue or the registries; deciding what gets fetched
// next is the coordinator's job.
type worker struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

type fetchOutcome struct {
	links []string
	err   error
}

// process fetches u and builds its PageRecord. It returns a *FetchError on
// any failure, including a panic in the fetcher and expiry of ctx.
//
// The fetch runs in its own goroutine so that a fetcher which ignores ctx
// cannot hold the task past its deadline. Such a fetch keeps running in the
// background until the transport gives up; its result is dropped.
func (w *worker) process(ctx context.Context, u CanonicalURL) (PageRecord, error) {
	// Buffered: an abandoned fetch must be able to finish without a reader.
	done := make(chan fetchOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		links, err := w.fetcher.FetchLinks(ctx, u.String())
		done <- fetchOutcome{links: links, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		select {
		case out = <-done:
		default:
			w.logger.Warn("abandoning fetch that did not honor cancellation", "url", u.String())
			return PageRecord{}, &FetchError{URL: u.String(), Err: context.Cause(ctx)}
		}
	}

	if out.err != nil {
		if ctx.Err() != nil {
			// The transport saw the deadline first; report it as the task
			// timeout rather than a network error.
			return PageRecord{}, &FetchError{URL: u.String(), Err: fmt.Errorf("%w: %v", context.Cause(ctx), out.err)}
		}
		return PageRecord{}, &FetchError{URL: u.String(), Err: out.err}
	}

	links := make([]CanonicalURL, 0, len(out.links))
	for _, raw := range out.links {
		link, err := Normalize(u, raw)
		if err != nil {
			w.logger.Debug("skipping link", "page", u.String(), "error", err)
			continue
		}
		links = append(links, link)
	}

	return NewPageRecord(u, links), nil
}
