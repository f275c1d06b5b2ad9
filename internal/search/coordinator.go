package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/embeddings"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/scoring"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

var searchTracer = otel.Tracer("supportd.search.coordinator")

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = errors.New("query cannot be empty")

const (
	// DefaultStoreTimeout bounds each per-corpus store call.
	DefaultStoreTimeout = 2 * time.Second

	// DefaultLimit is the number of candidates returned when the caller
	// does not ask for a specific count.
	DefaultLimit = 5

	// MaxLimit caps a caller-supplied limit.
	MaxLimit = 20
)

// Corpus binds a vector store to the collection and origin it serves.
type Corpus struct {
	Store      vectorstore.Store
	Collection string
	Origin     knowledge.Origin
}

// Config tunes the coordinator. Zero values pick the defaults.
type Config struct {
	// StoreTimeout bounds each per-store query independently of the
	// caller's deadline.
	StoreTimeout time.Duration

	// DefaultLimit is used when Search is called with limit <= 0.
	DefaultLimit int

	// MaxLimit caps the per-request limit override.
	MaxLimit int
}

func (c *Config) applyDefaults() {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = MaxLimit
	}
}

// FromAppConfig builds a coordinator Config from the application config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		StoreTimeout: appCfg.Retrieval.StoreTimeout.Duration(),
		DefaultLimit: appCfg.Retrieval.Limit,
		MaxLimit:     appCfg.Retrieval.MaxLimit,
	}
}

// DegradedStores reports which corpora failed to answer within their
// timeout. A degraded corpus contributed nothing to the result.
type DegradedStores struct {
	Reference bool
	Learned   bool
}

// Result is a ranked, deduplicated candidate list with degradation flags.
type Result struct {
	Candidates []knowledge.Candidate
	Degraded   DegradedStores
}

// Coordinator runs retrieval across the reference and learned corpora.
type Coordinator struct {
	embedder  embeddings.Provider
	reference Corpus
	learned   Corpus
	scorer    *scoring.Scorer
	config    Config
	logger    *zap.Logger
	metrics   *Metrics

	// defaultLimit is kept apart from config so the watcher can adjust
	// it while searches are in flight.
	defaultLimit atomic.Int64
}

// NewCoordinator creates a search coordinator over the two corpora.
func NewCoordinator(embedder embeddings.Provider, reference, learned Corpus, scorer *scoring.Scorer, cfg Config, logger *zap.Logger) (*Coordinator, error) {
	if embedder == nil {
		return nil, errors.New("embedding provider is required")
	}
	if reference.Store == nil {
		return nil, errors.New("reference corpus store is required")
	}
	if learned.Store == nil {
		return nil, errors.New("learned corpus store is required")
	}
	if err := vectorstore.ValidateCollectionName(reference.Collection); err != nil {
		return nil, fmt.Errorf("reference corpus: %w", err)
	}
	if err := vectorstore.ValidateCollectionName(learned.Collection); err != nil {
		return nil, fmt.Errorf("learned corpus: %w", err)
	}
	if reference.Origin == "" {
		reference.Origin = knowledge.OriginReference
	}
	if learned.Origin == "" {
		learned.Origin = knowledge.OriginLearned
	}
	if scorer == nil {
		scorer = scoring.NewScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	coord := &Coordinator{
		embedder:  embedder,
		reference: reference,
		learned:   learned,
		scorer:    scorer,
		config:    cfg,
		logger:    logger,
		metrics:   NewMetrics(logger),
	}
	coord.defaultLimit.Store(int64(cfg.DefaultLimit))
	return coord, nil
}

// SetDefaultLimit changes the default candidate count at runtime.
// Values below 1 are ignored; MaxLimit stays as configured.
func (c *Coordinator) SetDefaultLimit(n int) {
	if n < 1 {
		return
	}
	c.defaultLimit.Store(int64(n))
}

// Search retrieves, scores, and ranks candidates for a free-text query.
//
// The query is embedded exactly once; reference and learned stores are
// queried concurrently with that vector, each under its own timeout. A
// store error or timeout degrades that corpus (empty contribution plus a
// flag in Result.Degraded) rather than failing the search. An embedding
// failure is fatal and surfaces embeddings.ErrEmbeddingUnavailable.
//
// Both corpora empty or degraded yields Result{Candidates: nil} with no
// error; the caller renders the no-knowledge response.
func (c *Coordinator) Search(ctx context.Context, query string, qc knowledge.QueryContext, limit int) (_ *Result, err error) {
	ctx, span := searchTracer.Start(ctx, "Coordinator.Search")
	defer span.End()

	start := time.Now()
	defer func() {
		c.metrics.RecordSearch(ctx, time.Since(start), err)
	}()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	limit = clampLimit(limit, int(c.defaultLimit.Load()), c.config.MaxLimit)

	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Overfetch per corpus so the merged list still fills the limit
	// after near-duplicate collapse.
	fetchK := limit * 2
	filters := qc.Filters()

	var (
		wg       sync.WaitGroup
		outcomes [2]corpusOutcome
	)
	for i, corpus := range []Corpus{c.reference, c.learned} {
		wg.Add(1)
		go func(i int, corpus Corpus) {
			defer wg.Done()
			outcomes[i] = c.queryCorpus(ctx, corpus, vector, fetchK, filters)
		}(i, corpus)
	}
	wg.Wait()

	merged := append(outcomes[0].candidates, outcomes[1].candidates...)
	merged = collapseNearDuplicates(merged)
	rankCandidates(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if len(merged) == 0 {
		merged = nil
	}

	result := &Result{
		Candidates: merged,
		Degraded: DegradedStores{
			Reference: outcomes[0].degraded,
			Learned:   outcomes[1].degraded,
		},
	}

	span.SetAttributes(
		attribute.Int("search.limit", limit),
		attribute.Int("search.candidates", len(result.Candidates)),
		attribute.Bool("search.degraded.reference", result.Degraded.Reference),
		attribute.Bool("search.degraded.learned", result.Degraded.Learned),
	)
	c.logger.Debug("search completed",
		zap.Int("limit", limit),
		zap.Int("candidates", len(result.Candidates)),
		zap.Bool("degraded_reference", result.Degraded.Reference),
		zap.Bool("degraded_learned", result.Degraded.Learned))

	return result, nil
}

// corpusOutcome is one corpus's contribution to a search.
type corpusOutcome struct {
	candidates []knowledge.Candidate
	degraded   bool
}

// queryCorpus runs one store query under the per-store timeout and scores
// the hits. Failures degrade the corpus instead of propagating.
func (c *Coordinator) queryCorpus(ctx context.Context, corpus Corpus, vector []float32, k int, filters map[string]string) corpusOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
	defer cancel()

	start := time.Now()
	results, err := corpus.Store.Query(ctx, corpus.Collection, vector, k, filters)
	c.metrics.RecordStoreQuery(ctx, string(corpus.Origin), time.Since(start), err)
	if err != nil {
		c.logger.Warn("corpus query failed, degrading",
			zap.String("origin", string(corpus.Origin)),
			zap.String("collection", corpus.Collection),
			zap.Error(err))
		return corpusOutcome{degraded: true}
	}

	candidates := make([]knowledge.Candidate, 0, len(results))
	for _, res := range results {
		record := knowledge.FromResult(res)
		if record.Origin == "" {
			record.Origin = corpus.Origin
		}
		cand := knowledge.Candidate{
			Record:        record,
			RawSimilarity: float64(res.Score),
			Embedding:     res.Embedding,
		}
		c.scorer.ScoreCandidate(&cand)
		candidates = append(candidates, cand)
	}
	return corpusOutcome{candidates: candidates}
}
