package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// WorkQueue is an unbounded FIFO of URLs awaiting fetch, shared by the
// coordinator and every running task.
type WorkQueue struct {
	mu    sync.Mutex
	items []CanonicalURL
	// ready holds at most one pending wake-up for a blocked Poll.
	ready chan struct{}
}

// NewWorkQueue creates an empty queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{ready: make(chan struct{}, 1)}
}

// Push appends u to the back of the queue.
func (q *WorkQueue) Push(u CanonicalURL) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop removes the front URL without blocking.
func (q *WorkQueue) TryPop() (CanonicalURL, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return CanonicalURL{}, false
	}
	u := q.items[0]
	q.items[0] = CanonicalURL{}
	q.items = q.items[1:]
	return u, true
}

// Poll removes the front URL, waiting up to wait for one to arrive.
// It returns false if nothing arrived in time or ctx is done; an empty poll
// is not an error.
func (q *WorkQueue) Poll(ctx context.Context, wait time.Duration) (CanonicalURL, bool) {
	if u, ok := q.TryPop(); ok {
		return u, true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return CanonicalURL{}, false
		case <-timer.C:
			return q.TryPop()
		case <-q.ready:
			if u, ok := q.TryPop(); ok {
				return u, true
			}
		}
	}
}

// Len returns the number of queued URLs.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// SeenSet records every URL ever admitted to the work queue. It only grows.
type SeenSet struct {
	mu   sync.Mutex
	urls map[CanonicalURL]struct{}
}

// NewSeenSet creates an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{urls: make(map[CanonicalURL]struct{})}
}

// MarkIfAbsent adds u and reports whether it was newly added.
// The check and the insert happen under one lock: exactly one caller wins
// for any URL.
func (s *SeenSet) MarkIfAbsent(u CanonicalURL) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[u]; ok {
		return false
	}
	s.urls[u] = struct{}{}
	return true
}

// Contains reports whether u has been seen.
func (s *SeenSet) Contains(u CanonicalURL) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[u]
	return ok
}

// Len returns the number of distinct URLs seen.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// VisitedMap holds the record of every successfully fetched URL in
// completion order. Once sealed it rejects further inserts.
type VisitedMap struct {
	mu     sync.RWMutex
	pages  map[CanonicalURL]int
	order  []PageRecord
	sealed bool
}

// NewVisitedMap creates an empty map.
func NewVisitedMap() *VisitedMap {
	return &VisitedMap{pages: make(map[CanonicalURL]int)}
}

// Add stores rec and reports whether it was inserted. It returns false if a
// record for the same URL already exists or the map is sealed.
func (v *VisitedMap) Add(rec PageRecord) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sealed {
		return false
	}
	if _, ok := v.pages[rec.url]; ok {
		return false
	}
	v.pages[rec.url] = len(v.order)
	v.order = append(v.order, rec)
	return true
}

// Get returns the record for u.
func (v *VisitedMap) Get(u CanonicalURL) (PageRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.pages[u]
	if !ok {
		return PageRecord{}, false
	}
	return v.order[i], true
}

// Len returns the number of visited pages.
func (v *VisitedMap) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.order)
}

// Seal stops the map from accepting records and returns the final snapshot.
func (v *VisitedMap) Seal() []PageRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sealed = true
	out := make([]PageRecord, len(v.order))
	copy(out, v.order)
	return out
}

// Snapshot returns the records collected so far in completion order.
func (v *VisitedMap) Snapshot() []PageRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]PageRecord, len(v.order))
	copy(out, v.order)
	return out
}

// Counters track crawl progress. They are for observability only; no
// control-flow decision reads them except the in-flight count.
type Counters struct {
	submitted atomic.Int64
	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Submitted int64 `json:"submitted" yaml:"submitted"`
	InFlight  int64 `json:"inFlight" yaml:"inFlight"`
	Completed int64 `json:"completed" yaml:"completed"`
	Failed    int64 `json:"failed" yaml:"failed"`
}

// Succeeded returns the number of completed jobs that did not fail.
func (s Stats) Succeeded() int64 {
	return s.Completed - s.Failed
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Submitted: c.submitted.Load(),
		InFlight:  c.inFlight.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
	}
}
