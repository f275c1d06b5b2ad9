package events

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const eventsInstrumentationName = "github.com/fyrsmithlabs/supportd/internal/events"

// Metrics holds usage event stream metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	published metric.Int64Counter
	dropped   metric.Int64Counter
	observed  metric.Int64Counter
	applied   metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for the event stream.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(eventsInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.published, err = m.meter.Int64Counter(
		"supportd.events.published_total",
		metric.WithDescription("Usage events published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create published counter", zap.Error(err))
	}

	m.dropped, err = m.meter.Int64Counter(
		"supportd.events.dropped_total",
		metric.WithDescription("Usage events dropped at publish"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create dropped counter", zap.Error(err))
	}

	m.observed, err = m.meter.Int64Counter(
		"supportd.events.observed_total",
		metric.WithDescription("Usage events received by the consumer, labeled by origin"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create observed counter", zap.Error(err))
	}

	m.applied, err = m.meter.Int64Counter(
		"supportd.events.applied_total",
		metric.WithDescription("Usage increments written to the learned corpus"),
		metric.WithUnit("{increment}"),
	)
	if err != nil {
		m.logger.Warn("failed to create applied counter", zap.Error(err))
	}
}

// RecordPublished records one published usage event.
func (m *Metrics) RecordPublished(ctx context.Context) {
	if m.published != nil {
		m.published.Add(ctx, 1)
	}
}

// RecordDropped records one event dropped at publish.
func (m *Metrics) RecordDropped(ctx context.Context) {
	if m.dropped != nil {
		m.dropped.Add(ctx, 1)
	}
}

// RecordObserved records one event received by the consumer.
func (m *Metrics) RecordObserved(ctx context.Context, origin string) {
	if m.observed != nil {
		m.observed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("origin", origin)))
	}
}

// RecordApplied records increments written to a learned record.
func (m *Metrics) RecordApplied(ctx context.Context, count int) {
	if m.applied != nil {
		m.applied.Add(ctx, int64(count))
	}
}
