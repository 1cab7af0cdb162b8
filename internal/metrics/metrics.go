// Package metrics provides the Prometheus collectors of the practice engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tensequest"

var (
	// SubmissionsTotal counts graded submissions.
	// Labels: result (correct, incorrect, error)
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attempt",
			Name:      "submissions_total",
			Help:      "Total number of answer submissions by outcome",
		},
		[]string{"result"},
	)

	// AttemptRetriesTotal counts submissions retried against a fresh attempt
	// after the backend reported the attempt gone.
	AttemptRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attempt",
			Name:      "stale_retries_total",
			Help:      "Total number of submissions retried after a stale attempt",
		},
	)

	// FetchFailuresTotal counts question list fetches that failed during
	// pool selection.
	// Labels: policy (strict, lru, ladder)
	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed question fetches during selection",
		},
		[]string{"policy"},
	)

	// PoolSize observes the number of questions selected for a run.
	// Labels: policy (strict, lru, ladder)
	PoolSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "pool_size",
			Help:      "Number of questions selected for a run",
			Buckets:   []float64{1, 3, 6, 10, 15, 20, 30},
		},
		[]string{"policy"},
	)

	// SessionsCompletedTotal counts finished runs.
	// Labels: mode (classic, millionaire, focus)
	SessionsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "completed_total",
			Help:      "Total number of completed practice sessions",
		},
		[]string{"mode"},
	)

	// HTTPRequestDuration tracks API request latency.
	// Labels: method, route, status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
