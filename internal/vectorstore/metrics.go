// Package vectorstore provides Prometheus metrics for store operations.
package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks how long store operations take.
	// Labels: provider (chromem, qdrant, pgvector), operation (upsert, query, delete, get, count)
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "supportd",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// OperationErrors counts failed store operations.
	// Labels: provider, operation
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportd",
			Subsystem: "vectorstore",
			Name:      "operation_errors_total",
			Help:      "Total number of failed vector store operations",
		},
		[]string{"provider", "operation"},
	)

	// DocumentsStored tracks the number of documents per collection.
	// Labels: collection
	DocumentsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "supportd",
			Subsystem: "vectorstore",
			Name:      "documents_stored",
			Help:      "Number of documents stored per collection",
		},
		[]string{"collection"},
	)

	// DimensionRejections counts upserts rejected for embedding dimension
	// mismatches. A non-zero rate means a producer is embedding with the
	// wrong model.
	DimensionRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportd",
			Subsystem: "vectorstore",
			Name:      "dimension_rejections_total",
			Help:      "Total number of upserts rejected for dimension mismatch",
		},
	)
)

// observeOp records duration and outcome for a store operation.
func observeOp(provider, operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		OperationErrors.WithLabelValues(provider, operation).Inc()
	}
}
