package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/embeddings"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/redact"
	"github.com/fyrsmithlabs/supportd/internal/scoring"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

var feedbackTracer = otel.Tracer("supportd.feedback.service")

// DefaultStoreTimeout bounds each learned-corpus call during promotion.
const DefaultStoreTimeout = 2 * time.Second

// Config holds the feedback pipeline configuration.
type Config struct {
	// LogPath is the append-only event log location.
	LogPath string

	// Collection is the learned corpus collection promotions write to.
	Collection string

	// DisableMerge turns off merge-on-promotion; every promotion then
	// inserts a new record even when a near-duplicate exists.
	DisableMerge bool

	// StoreTimeout bounds each store call during promotion.
	StoreTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
}

// FromAppConfig maps the application configuration onto a Config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		LogPath:      appCfg.Feedback.LogPath,
		Collection:   appCfg.VectorStore.LearnedCollection,
		DisableMerge: appCfg.Feedback.DisableMerge,
		StoreTimeout: appCfg.Retrieval.StoreTimeout.Duration(),
	}
}

// Service runs the feedback learning loop: durable logging first, then
// classification, then promotion into the learned corpus.
type Service struct {
	log      *Log
	scrubber redact.Scrubber
	embedder embeddings.Provider
	store    vectorstore.Store
	scorer   *scoring.Scorer
	config   Config
	logger   *zap.Logger
	metrics  *Metrics
	keys     *knowledge.KeyedMutex
	records  *knowledge.KeyedMutex
	now      func() time.Time
}

// NewService creates the feedback service. records is the
// record-identity mutex shared with the usage consumer so merges and
// usage writes never interleave on one record; nil gets a private
// instance.
func NewService(
	log *Log,
	scrubber redact.Scrubber,
	embedder embeddings.Provider,
	store vectorstore.Store,
	scorer *scoring.Scorer,
	records *knowledge.KeyedMutex,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if log == nil {
		return nil, errors.New("log is required")
	}
	if scrubber == nil {
		return nil, errors.New("scrubber is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding provider is required")
	}
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if err := vectorstore.ValidateCollectionName(cfg.Collection); err != nil {
		return nil, fmt.Errorf("learned collection: %w", err)
	}
	if scorer == nil {
		scorer = scoring.NewScorer()
	}
	if records == nil {
		records = knowledge.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Service{
		log:      log,
		scrubber: scrubber,
		embedder: embedder,
		store:    store,
		scorer:   scorer,
		config:   cfg,
		logger:   logger,
		metrics:  NewMetrics(logger),
		keys:     knowledge.NewKeyedMutex(),
		records:  records,
		now:      time.Now,
	}, nil
}

// Process runs one feedback event through the learning loop and
// returns its terminal receipt.
//
// The event is redacted and durably logged before anything else; a log
// write failure aborts with ErrLogWrite and the caller retries with
// the same FeedbackID. A duplicate of an already-completed event
// returns the recorded receipt unchanged.
func (s *Service) Process(ctx context.Context, event Event) (_ *Receipt, err error) {
	ctx, span := feedbackTracer.Start(ctx, "Service.Process")
	defer span.End()

	start := time.Now()
	outcome := ""
	defer func() {
		s.metrics.RecordProcess(ctx, outcome, time.Since(start), err)
	}()

	if err := event.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Identity and time are fixed before anything durable happens so
	// retries replay the exact same event.
	if strings.TrimSpace(event.FeedbackID) == "" {
		event.FeedbackID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}

	event = event.redacted(ctx, s.scrubber)

	// Promotions for the same normalized question serialize here;
	// unrelated questions proceed concurrently.
	unlock := s.keys.Lock(questionKey(event.QueryText))
	defer unlock()

	if err := s.log.Append(ctx, event); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if prior, ok := s.log.Outcome(event.FeedbackID); ok {
		s.logger.Debug("duplicate feedback event, returning recorded outcome",
			zap.String("feedback_id", event.FeedbackID),
			zap.String("outcome", string(prior.Outcome)))
		outcome = string(prior.Outcome)
		return &prior, nil
	}

	receipt := s.classify(ctx, &event)

	// If this write fails the event has no terminal receipt and stays
	// replayable; a re-promotion on retry lands on the merge path
	// rather than inserting a duplicate.
	if err := s.log.AppendReceipt(ctx, *receipt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	outcome = string(receipt.Outcome)
	span.SetAttributes(
		attribute.String("feedback.outcome", outcome),
		attribute.Bool("feedback.merged", receipt.Merged),
	)
	s.logger.Info("feedback event processed",
		zap.String("feedback_id", event.FeedbackID),
		zap.Int("rating", event.Rating),
		zap.String("outcome", outcome),
		zap.String("reason", receipt.Reason),
		zap.String("record_id", receipt.RecordID))
	return receipt, nil
}

// classify applies the promotion policy. Only a satisfied event with an
// agent correction reaches the learned corpus; an unsatisfied rating is
// never overridden by an attached solution.
func (s *Service) classify(ctx context.Context, event *Event) *Receipt {
	switch {
	case !event.Satisfied():
		return &Receipt{FeedbackID: event.FeedbackID, Outcome: OutcomeLoggedOnly, Reason: ReasonUnsatisfied}
	case !event.HasManualSolution():
		return &Receipt{FeedbackID: event.FeedbackID, Outcome: OutcomeLoggedOnly, Reason: ReasonNoManualSolution}
	default:
		return s.promote(ctx, event)
	}
}

// Stats returns a snapshot of the log's running totals.
func (s *Service) Stats() Stats {
	return s.log.Stats()
}

// SearchSimilar returns logged events lexically similar to query.
func (s *Service) SearchSimilar(query string, limit int) []Event {
	return s.log.SearchSimilar(query, limit)
}

// Export writes a JSON report of the log to w.
func (s *Service) Export(w io.Writer) error {
	return s.log.Export(w)
}

// questionKey normalizes a question so retries and trivially
// reformatted copies of the same text serialize on one lock.
func questionKey(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}
