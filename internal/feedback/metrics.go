package feedback

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const feedbackInstrumentationName = "github.com/fyrsmithlabs/supportd/internal/feedback"

// Metrics holds all feedback-loop metrics.
type Metrics struct {
	meter      metric.Meter
	logger     *zap.Logger
	duration   metric.Float64Histogram
	promotions metric.Int64Counter
	degraded   metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for the feedback loop.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(feedbackInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"supportd.feedback.process_duration_seconds",
		metric.WithDescription("Feedback event processing duration in seconds, labeled by outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.promotions, err = m.meter.Int64Counter(
		"supportd.feedback.promotions_total",
		metric.WithDescription("Feedback events promoted into the learned corpus, labeled by merge"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create promotions counter", zap.Error(err))
	}

	m.degraded, err = m.meter.Int64Counter(
		"supportd.feedback.degraded_total",
		metric.WithDescription("Promotions degraded to logged-only, labeled by reason"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create degraded counter", zap.Error(err))
	}
}

// RecordProcess records one completed feedback operation.
func (m *Metrics) RecordProcess(ctx context.Context, outcome string, duration time.Duration, err error) {
	if m.duration == nil {
		return
	}
	m.duration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.Bool("error", err != nil),
		))
}

// RecordPromotion records one learned-corpus write.
func (m *Metrics) RecordPromotion(ctx context.Context, merged bool) {
	if m.promotions != nil {
		m.promotions.Add(ctx, 1,
			metric.WithAttributes(attribute.Bool("merged", merged)))
	}
}

// RecordDegraded records one promotion that fell back to logged-only.
func (m *Metrics) RecordDegraded(ctx context.Context, reason string) {
	if m.degraded != nil {
		m.degraded.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", reason)))
	}
}
