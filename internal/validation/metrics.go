package validation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const validationInstrumentationName = "github.com/fyrsmithlabs/supportd/internal/validation"

// Metrics holds all validation-related metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	fallbacks metric.Int64Counter
	invalid   metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for validation.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(validationInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"supportd.validation.duration_seconds",
		metric.WithDescription("Validation duration in seconds, labeled by strategy"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 3.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.fallbacks, err = m.meter.Int64Counter(
		"supportd.validation.fallbacks_total",
		metric.WithDescription("LLM validations that fell back to the heuristic strategy"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create fallbacks counter", zap.Error(err))
	}

	m.invalid, err = m.meter.Int64Counter(
		"supportd.validation.invalid_total",
		metric.WithDescription("Answers that failed validation, labeled by strategy"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		m.logger.Warn("failed to create invalid counter", zap.Error(err))
	}
}

// RecordValidation records one completed validation.
func (m *Metrics) RecordValidation(ctx context.Context, strategy string, duration time.Duration, valid bool) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if !valid && m.invalid != nil {
		m.invalid.Add(ctx, 1, attrs)
	}
}

// RecordFallback records one fall back from the LLM strategy.
func (m *Metrics) RecordFallback(ctx context.Context) {
	if m.fallbacks != nil {
		m.fallbacks.Add(ctx, 1)
	}
}
