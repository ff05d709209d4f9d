// Package metrics provides Prometheus metrics for the Wiser branch engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BranchesCreatedTotal tracks branch creation attempts by outcome
	BranchesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wiser",
			Subsystem: "branches",
			Name:      "created_total",
			Help:      "Total number of branch creation attempts by status",
		},
		[]string{"status"},
	)

	// BranchCopyDuration tracks how long the branch database copy takes
	BranchCopyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wiser",
			Subsystem: "branches",
			Name:      "copy_duration_seconds",
			Help:      "Duration of the branch database clone in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// MergesTotal tracks merge runs by outcome (success, partial, error)
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wiser",
			Subsystem: "merge",
			Name:      "runs_total",
			Help:      "Total number of merge runs by status",
		},
		[]string{"status"},
	)

	// MergeDurationSeconds tracks end-to-end merge duration
	MergeDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wiser",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// MergeRecordsTotal tracks individual history records replayed
	MergeRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wiser",
			Subsystem: "merge",
			Name:      "records_total",
			Help:      "Total number of history records processed by result",
		},
		[]string{"result"},
	)

	// KafkaMessagesPublished tracks branch lifecycle events published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wiser",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)
