package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// queueDepth is sampled by workers after each item, so it lags by at most one
// item per worker.
var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqsasync",
			Subsystem: "workerpool",
			Name:      "submissions_total",
			Help:      "Items accepted into the admission queue.",
		},
		[]string{"pool"},
	)

	panicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqsasync",
			Subsystem: "workerpool",
			Name:      "handler_panics_total",
			Help:      "Handler invocations that panicked and were recovered.",
		},
		[]string{"pool"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqsasync",
			Subsystem: "workerpool",
			Name:      "run_duration_seconds",
			Help:      "Handler execution latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"pool"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sqsasync",
			Subsystem: "workerpool",
			Name:      "queue_depth",
			Help:      "Items waiting in the admission queue.",
		},
		[]string{"pool"},
	)
)
