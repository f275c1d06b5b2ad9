package answer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const answerInstrumentationName = "github.com/fyrsmithlabs/supportd/internal/answer"

// Metrics holds all answer assembly metrics.
type Metrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	duration    metric.Float64Histogram
	contextSize metric.Int64Histogram
	fallbacks   metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for answer assembly.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(answerInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"supportd.answer.assembly_duration_seconds",
		metric.WithDescription("Answer assembly duration in seconds, generation call included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.contextSize, err = m.meter.Int64Histogram(
		"supportd.answer.context_candidates",
		metric.WithDescription("Candidates included in the generation context window"),
		metric.WithUnit("{candidate}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5),
	)
	if err != nil {
		m.logger.Warn("failed to create context size histogram", zap.Error(err))
	}

	m.fallbacks, err = m.meter.Int64Counter(
		"supportd.answer.fallbacks_total",
		metric.WithDescription("Answers served as a top-candidate excerpt because generation was unavailable"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		m.logger.Warn("failed to create fallbacks counter", zap.Error(err))
	}
}

// RecordAssembly records one assembly attempt.
func (m *Metrics) RecordAssembly(ctx context.Context, duration time.Duration, contextSize int, fallback bool) {
	attrs := metric.WithAttributes(attribute.Bool("fallback", fallback))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.contextSize != nil {
		m.contextSize.Record(ctx, int64(contextSize))
	}
	if fallback && m.fallbacks != nil {
		m.fallbacks.Add(ctx, 1)
	}
}
