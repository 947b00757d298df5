// Package metrics exposes Prometheus collectors for the deployment pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "launchpad_deployer"

// Queue metrics
var (
	// JobsTotal counts finished queue jobs by outcome
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_jobs_total",
			Help:      "Total queue jobs by terminal outcome",
		},
		[]string{"queue", "result"}, // result: success, failed
	)

	// JobRetriesTotal counts automatic retries and explicit requeues
	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_job_retries_total",
			Help:      "Total job reschedules by kind",
		},
		[]string{"queue", "kind"}, // kind: retry, requeue
	)

	// QueueDepth tracks jobs admitted but not yet finished
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs currently queued or running",
		},
		[]string{"queue"},
	)
)

// Pipeline metrics
var (
	// DeploymentsTotal counts deployments reaching a terminal state
	DeploymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Deployments by chain and terminal status",
		},
		[]string{"chain", "status"},
	)

	// ConfirmationPollsTotal counts receipt polls by result
	ConfirmationPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_polls_total",
			Help:      "Receipt polls by result",
		},
		[]string{"result"}, // result: miss, confirmed, reverted, error
	)

	// ConfirmationTimeoutsTotal counts confirmation tasks that exhausted the retry budget
	ConfirmationTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_timeouts_total",
			Help:      "Confirmation tasks that exhausted their retry budget",
		},
	)

	// SubmissionDuration observes time from job pickup to on-chain submission
	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time from job pickup to transaction submission",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)
