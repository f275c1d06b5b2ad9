package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

// Defaults applied by Config.applyDefaults.
const (
	DefaultSubjectPrefix = "knowledge.usage"
	DefaultFlushInterval = 2 * time.Second
	DefaultStoreTimeout  = 2 * time.Second
)

// Config holds the usage event stream configuration.
type Config struct {
	// SubjectPrefix is prepended to every published subject.
	SubjectPrefix string

	// ReferenceCollection is the curated corpus collection the consumer
	// applies reference-origin increments to.
	ReferenceCollection string

	// LearnedCollection is the learned corpus collection the consumer
	// applies learned-origin increments to.
	LearnedCollection string

	// FlushInterval is how often the consumer applies batched increments.
	FlushInterval time.Duration

	// StoreTimeout bounds each store call while applying a batch.
	StoreTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
}

// FromAppConfig maps the application configuration onto a Config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		SubjectPrefix:       appCfg.Events.SubjectPrefix,
		ReferenceCollection: appCfg.VectorStore.ReferenceCollection,
		LearnedCollection:   appCfg.VectorStore.LearnedCollection,
		StoreTimeout:        appCfg.Retrieval.StoreTimeout.Duration(),
	}
}

// Connect dials NATS with bounded reconnects.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("supportd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return nc, nil
}

// UsageEvent is the JSON body published for one answer contribution.
type UsageEvent struct {
	Origin    string    `json:"origin"`
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the usage sink the answer assembler writes to.
type Publisher interface {
	RecordUsage(origin, recordID string)
}

// NATSPublisher publishes one event per answer contribution to
// <prefix>.<origin>.<recordID>. Publishing never blocks answer
// assembly and never fails it: errors are logged and the event is
// dropped.
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	logger  *zap.Logger
	metrics *Metrics
}

// NewPublisher creates a publisher on an established connection. The
// connection is owned by the caller.
func NewPublisher(nc *nats.Conn, cfg Config, logger *zap.Logger) (*NATSPublisher, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &NATSPublisher{
		nc:      nc,
		prefix:  cfg.SubjectPrefix,
		logger:  logger,
		metrics: NewMetrics(logger),
	}, nil
}

// RecordUsage publishes a usage event for one record.
func (p *NATSPublisher) RecordUsage(origin, recordID string) {
	if recordID == "" {
		return
	}

	data, err := json.Marshal(UsageEvent{
		Origin:    origin,
		RecordID:  recordID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("usage event dropped", zap.String("record_id", recordID), zap.Error(err))
		p.metrics.RecordDropped(context.Background())
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", p.prefix, origin, recordID)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("usage event dropped",
			zap.String("subject", subject),
			zap.Error(err))
		p.metrics.RecordDropped(context.Background())
		return
	}
	p.metrics.RecordPublished(context.Background())
}

// NoopPublisher drops every usage event. It stands in when the event
// stream is disabled.
type NoopPublisher struct{}

// RecordUsage does nothing.
func (NoopPublisher) RecordUsage(string, string) {}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
