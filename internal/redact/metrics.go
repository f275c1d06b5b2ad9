package redact

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const redactInstrumentationName = "github.com/fyrsmithlabs/supportd/internal/redact"

// Metrics holds all redaction-related metrics.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	findings metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for redaction.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(redactInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"supportd.redact.scrub_duration_seconds",
		metric.WithDescription("Credential scrub duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.findings, err = m.meter.Int64Counter(
		"supportd.redact.findings_total",
		metric.WithDescription("Credentials redacted from feedback text, labeled by rule"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		m.logger.Warn("failed to create findings counter", zap.Error(err))
	}
}

// RecordScrub records one completed scrub pass.
func (m *Metrics) RecordScrub(ctx context.Context, duration time.Duration, found int) {
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.Bool("found", found > 0)))
	}
}

// RecordFinding records one redacted credential.
func (m *Metrics) RecordFinding(ctx context.Context, ruleID string) {
	if m.findings != nil {
		m.findings.Add(ctx, 1,
			metric.WithAttributes(attribute.String("rule", ruleID)))
	}
}
