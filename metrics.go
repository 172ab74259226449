package sqsasync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqsasync",
			Subsystem: "connection",
			Name:      "results_delivered_total",
			Help:      "Results handed to callbacks or the error reporter.",
		},
		[]string{"outcome"},
	)

	resultsDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sqsasync",
			Subsystem: "connection",
			Name:      "results_discarded_total",
			Help:      "Results of fire-and-forget requests.",
		},
	)

	callbackPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sqsasync",
			Subsystem: "connection",
			Name:      "callback_panics_total",
			Help:      "Completion callbacks that panicked and were recovered.",
		},
	)

	drainBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sqsasync",
			Subsystem: "connection",
			Name:      "drain_batch_size",
			Help:      "Results delivered per non-empty drain.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		},
	)
)
