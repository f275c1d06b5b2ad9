package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const engineInstrumentationName = "github.com/fyrsmithlabs/supportd/internal/engine"

// Query outcomes recorded on the queries counter.
const (
	outcomeAnswered    = "answered"
	outcomeNoKnowledge = "no_knowledge"
	outcomeError       = "error"
)

// Metrics holds all engine-level metrics.
type Metrics struct {
	meter      metric.Meter
	logger     *zap.Logger
	queries    metric.Int64Counter
	duration   metric.Float64Histogram
	confidence metric.Float64Histogram
	seeded     metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for the engine.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(engineInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.queries, err = m.meter.Int64Counter(
		"supportd.engine.queries_total",
		metric.WithDescription("Queries served, labeled by outcome (answered, no_knowledge, error) and degradation"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		m.logger.Warn("failed to create queries counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"supportd.engine.query_duration_seconds",
		metric.WithDescription("End-to-end query duration in seconds, labeled by outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.confidence, err = m.meter.Float64Histogram(
		"supportd.engine.answer_confidence",
		metric.WithDescription("Confidence of served answers; a drift toward low buckets means the corpus is going stale"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create confidence histogram", zap.Error(err))
	}

	m.seeded, err = m.meter.Int64Counter(
		"supportd.engine.seeded_documents_total",
		metric.WithDescription("Reference documents loaded through seeding"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		m.logger.Warn("failed to create seeded counter", zap.Error(err))
	}
}

// RecordQuery records one completed query operation.
func (m *Metrics) RecordQuery(ctx context.Context, outcome string, degraded bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("degraded", degraded),
	)
	if m.queries != nil {
		m.queries.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordConfidence records the confidence of one served answer.
func (m *Metrics) RecordConfidence(ctx context.Context, confidence float64) {
	if m.confidence != nil {
		m.confidence.Record(ctx, confidence)
	}
}

// RecordSeed records one successful seeding run.
func (m *Metrics) RecordSeed(ctx context.Context, documents int) {
	if m.seeded != nil {
		m.seeded.Add(ctx, int64(documents))
	}
}
