package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const searchInstrumentationName = "github.com/fyrsmithlabs/supportd/internal/search"

// Metrics holds all search-related metrics.
type Metrics struct {
	meter         metric.Meter
	logger        *zap.Logger
	duration      metric.Float64Histogram
	storeDuration metric.Float64Histogram
	degraded      metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for search.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(searchInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"supportd.search.duration_seconds",
		metric.WithDescription("End-to-end search duration in seconds, embedding included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.storeDuration, err = m.meter.Float64Histogram(
		"supportd.search.store_query_duration_seconds",
		metric.WithDescription("Per-corpus vector store query duration in seconds, labeled by origin"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0),
	)
	if err != nil {
		m.logger.Warn("failed to create store duration histogram", zap.Error(err))
	}

	m.degraded, err = m.meter.Int64Counter(
		"supportd.search.degraded_total",
		metric.WithDescription("Corpus queries that failed or timed out and degraded to an empty contribution"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		m.logger.Warn("failed to create degraded counter", zap.Error(err))
	}
}

// RecordSearch records one end-to-end search.
func (m *Metrics) RecordSearch(ctx context.Context, duration time.Duration, err error) {
	if m.duration == nil {
		return
	}
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("error", err != nil),
	))
}

// RecordStoreQuery records one per-corpus store query.
func (m *Metrics) RecordStoreQuery(ctx context.Context, origin string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("origin", origin))

	if m.storeDuration != nil {
		m.storeDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil && m.degraded != nil {
		m.degraded.Add(ctx, 1, attrs)
	}
}
