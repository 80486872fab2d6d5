// Package metrics exposes Prometheus instruments for the dubbing daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dubber"

var (
	// jobsTotal counts finished jobs.
	// Labels:
	//   - outcome: completed, failed, cancelled
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished dubbing jobs by outcome",
		},
		[]string{"outcome"},
	)

	// stageDuration observes how long each pipeline stage took.
	// Buckets: 1s up to 1h.
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"stage", "status"},
	)

	capabilityRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_retries_total",
			Help:      "Retries of external capability calls after transient failures",
		},
		[]string{"capability"},
	)

	flaggedSegments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "translation_over_budget_segments_total",
		Help:      "Translated segments accepted above their word budget",
	})

	driftedSegments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drifted_segments_total",
		Help:      "Synthesized segments whose stretched length misses the original slot",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Jobs waiting for a pipeline slot",
	})

	runningJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "running_jobs",
		Help:      "Jobs currently holding a pipeline slot",
	})
)

// Outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// RecordJobOutcome counts a finished job.
func RecordJobOutcome(outcome string) {
	jobsTotal.WithLabelValues(outcome).Inc()
}

// RecordStageDuration observes one stage execution.
// Parameters:
//   - stage: stage key such as "translate"
//   - status: "success" or "failed"
func RecordStageDuration(stage, status string, seconds float64) {
	stageDuration.WithLabelValues(stage, status).Observe(seconds)
}

// RecordCapabilityRetry counts a retry against an external capability.
func RecordCapabilityRetry(capability string) {
	capabilityRetries.WithLabelValues(capability).Inc()
}

// AddFlaggedSegments counts over-budget translations.
func AddFlaggedSegments(n int) {
	if n > 0 {
		flaggedSegments.Add(float64(n))
	}
}

// AddDriftedSegments counts drifted synthesized segments.
func AddDriftedSegments(n int) {
	if n > 0 {
		driftedSegments.Add(float64(n))
	}
}

// SetQueueDepth reports the number of queued jobs.
func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

// SetRunningJobs reports the number of running jobs.
func SetRunningJobs(n int) { runningJobs.Set(float64(n)) }

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
