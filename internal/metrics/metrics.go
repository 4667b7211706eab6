// Package metrics exposes crawl progress as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

// Recorder implements crawler.Recorder on a set of Prometheus collectors.
type Recorder struct {
	jobsSubmitted   prometheus.Counter
	jobsStarted     prometheus.Counter
	jobsFinished    *prometheus.CounterVec
	jobsInFlight    prometheus.Gauge
	taskDuration    prometheus.Histogram
	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	sessionPages    prometheus.Histogram
}

var _ crawler.Recorder = (*Recorder)(nil)

// New creates a Recorder and registers its collectors on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitecrawl_jobs_submitted_total",
			Help: "Total number of distinct URLs admitted to the work queue.",
		}),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitecrawl_jobs_started_total",
			Help: "Total number of URLs dispatched to a worker.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_jobs_finished_total",
			Help: "Total number of finished tasks, labeled by outcome category.",
		}, []string{"category"}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitecrawl_jobs_in_flight",
			Help: "Number of tasks currently running.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecrawl_task_duration_seconds",
			Help:    "Duration of fetch-and-parse tasks in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_sessions_total",
			Help: "Total number of crawl sessions, labeled by whether they timed out.",
		}, []string{"timed_out"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecrawl_session_duration_seconds",
			Help:    "Duration of crawl sessions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		sessionPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecrawl_session_pages",
			Help:    "Number of pages collected per crawl session.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		r.jobsSubmitted, r.jobsStarted, r.jobsFinished, r.jobsInFlight,
		r.taskDuration, r.sessions, r.sessionDuration, r.sessionPages,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// JobSubmitted implements crawler.Recorder.
func (r *Recorder) JobSubmitted() {
	r.jobsSubmitted.Inc()
}

// JobStarted implements crawler.Recorder.
func (r *Recorder) JobStarted() {
	r.jobsStarted.Inc()
	r.jobsInFlight.Inc()
}

// JobFinished implements crawler.Recorder.
func (r *Recorder) JobFinished(elapsed time.Duration, err error) {
	r.jobsInFlight.Dec()
	r.taskDuration.Observe(elapsed.Seconds())
	r.jobsFinished.WithLabelValues(category(err)).Inc()
}

// SessionFinished implements crawler.Recorder.
func (r *Recorder) SessionFinished(elapsed time.Duration, pages int, timedOut bool) {
	label := "false"
	if timedOut {
		label = "true"
	}
	r.sessions.WithLabelValues(label).Inc()
	r.sessionDuration.Observe(elapsed.Seconds())
	r.sessionPages.Observe(float64(pages))
}

func category(err error) string {
	if err == nil {
		return "ok"
	}
	var fetchErr *crawler.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Category()
	}
	return "error"
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
