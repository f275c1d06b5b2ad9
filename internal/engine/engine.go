package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/answer"
	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/embeddings"
	"github.com/fyrsmithlabs/supportd/internal/feedback"
	"github.com/fyrsmithlabs/supportd/internal/generation"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/redact"
	"github.com/fyrsmithlabs/supportd/internal/scoring"
	"github.com/fyrsmithlabs/supportd/internal/search"
	"github.com/fyrsmithlabs/supportd/internal/validation"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

var engineTracer = otel.Tracer("supportd.engine")

// ErrInvalidSeed indicates a reference seeding request that failed
// validation. Nothing is stored when it is returned.
var ErrInvalidSeed = errors.New("invalid seed request")

// NoKnowledgeAnswer is served when retrieval finds nothing usable for a
// question.
const NoKnowledgeAnswer = "I could not find relevant knowledge for this question. " +
	"Try rephrasing it, or include the product brand and category."

// NoKnowledgeSuggestion accompanies NoKnowledgeAnswer so clients that
// render suggestions separately from the answer still surface the hint.
const NoKnowledgeSuggestion = "No knowledge matched this question. " +
	"Rephrase it or add the product brand and category to improve relevance."

// DefaultStoreTimeout bounds the store calls behind Stats and Health.
const DefaultStoreTimeout = 3 * time.Second

// Config tunes the engine. Zero values pick the defaults.
type Config struct {
	// StoreTimeout bounds each store call made by Stats and Health.
	// Query and SeedReference run under the caller's deadline.
	StoreTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
}

// FromAppConfig builds an engine Config from the application config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		StoreTimeout: appCfg.Retrieval.StoreTimeout.Duration(),
	}
}

// Deps collects the subsystems the engine orchestrates. Generator and
// Scrubber are optional; everything else is required.
type Deps struct {
	Searcher  *search.Coordinator
	Assembler *answer.Assembler
	Validator *validation.Validator
	Feedback  *feedback.Service
	Embedder  embeddings.Provider
	Generator generation.Generator
	Scrubber  redact.Scrubber
	Reference search.Corpus
	Learned   search.Corpus
}

// Engine executes the support Q&A operations end to end.
type Engine struct {
	searcher  *search.Coordinator
	assembler *answer.Assembler
	validator *validation.Validator
	feedback  *feedback.Service
	embedder  embeddings.Provider
	generator generation.Generator
	scrubber  redact.Scrubber
	reference search.Corpus
	learned   search.Corpus
	config    Config
	logger    *zap.Logger
	metrics   *Metrics
}

// New creates the engine over already-constructed subsystems.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Engine, error) {
	if deps.Searcher == nil {
		return nil, errors.New("search coordinator is required")
	}
	if deps.Assembler == nil {
		return nil, errors.New("answer assembler is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("answer validator is required")
	}
	if deps.Feedback == nil {
		return nil, errors.New("feedback service is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("embedding provider is required")
	}
	if deps.Reference.Store == nil {
		return nil, errors.New("reference corpus store is required")
	}
	if deps.Learned.Store == nil {
		return nil, errors.New("learned corpus store is required")
	}
	if err := vectorstore.ValidateCollectionName(deps.Reference.Collection); err != nil {
		return nil, fmt.Errorf("reference corpus: %w", err)
	}
	if err := vectorstore.ValidateCollectionName(deps.Learned.Collection); err != nil {
		return nil, fmt.Errorf("learned corpus: %w", err)
	}
	if deps.Generator == nil {
		deps.Generator = generation.NewDisabledGenerator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Engine{
		searcher:  deps.Searcher,
		assembler: deps.Assembler,
		validator: deps.Validator,
		feedback:  deps.Feedback,
		embedder:  deps.Embedder,
		generator: deps.Generator,
		scrubber:  deps.Scrubber,
		reference: deps.Reference,
		learned:   deps.Learned,
		config:    cfg,
		logger:    logger,
		metrics:   NewMetrics(logger),
	}, nil
}

// QueryRequest is one customer question with optional metadata filters.
type QueryRequest struct {
	Text string `json:"text"`

	// Filters narrow retrieval by record metadata. Recognized keys are
	// brand, product_category, doc_type, and issue_category; unknown keys
	// are ignored.
	Filters map[string]string `json:"filters,omitempty"`

	// Limit caps the candidate count; zero picks the configured default.
	Limit int `json:"limit,omitempty"`
}

// Source identifies one knowledge record behind an answer.
type Source struct {
	ID     string  `json:"id"`
	Origin string  `json:"origin"`
	Score  float64 `json:"score"`
}

// Degraded reports corpora that contributed nothing to a response because
// their store was unreachable or timed out.
type Degraded struct {
	Reference bool `json:"reference,omitempty"`
	Learned   bool `json:"learned,omitempty"`
}

// Any reports whether either corpus was degraded.
func (d Degraded) Any() bool { return d.Reference || d.Learned }

// QueryResponse is the full reply to one question.
type QueryResponse struct {
	Answer      string   `json:"answer"`
	Confidence  float64  `json:"confidence"`
	IsValid     bool     `json:"is_valid"`
	Sources     []Source `json:"sources"`
	Suggestions []string `json:"suggestions,omitempty"`

	// Validation carries the per-axis quality scores behind IsValid.
	// Absent on the no-knowledge response.
	Validation *validation.Report `json:"validation,omitempty"`

	// Fallback reports that generation was unavailable and Answer is a
	// solution excerpt rather than model output.
	Fallback bool `json:"fallback,omitempty"`

	// Model names the generation model; empty on fallback.
	Model string `json:"model,omitempty"`

	Degraded Degraded `json:"degraded"`
}

// Query answers one free-text question from both knowledge corpora.
//
// Retrieval, assembly, and validation each degrade rather than fail: a
// down corpus is flagged in Degraded, a down generator yields an excerpt
// answer with Fallback set, and an empty candidate list yields the
// no-knowledge response with zero confidence. The only user-visible
// errors are an empty question and an unavailable embedding provider.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (_ *QueryResponse, err error) {
	ctx, span := engineTracer.Start(ctx, "Engine.Query")
	defer span.End()

	start := time.Now()
	outcome := outcomeAnswered
	degraded := Degraded{}
	defer func() {
		e.metrics.RecordQuery(ctx, outcome, degraded.Any(), time.Since(start))
	}()

	qc := knowledge.ContextFromFilters(req.Filters)
	result, err := e.searcher.Search(ctx, req.Text, qc, req.Limit)
	if err != nil {
		outcome = outcomeError
		span.RecordError(err)
		return nil, err
	}
	degraded = Degraded{
		Reference: result.Degraded.Reference,
		Learned:   result.Degraded.Learned,
	}

	if len(result.Candidates) == 0 {
		outcome = outcomeNoKnowledge
		e.logger.Info("no knowledge for query",
			zap.Bool("degraded", degraded.Any()))
		return &QueryResponse{
			Answer:      NoKnowledgeAnswer,
			Sources:     []Source{},
			Suggestions: []string{NoKnowledgeSuggestion},
			Degraded:    degraded,
		}, nil
	}

	draft, err := e.assembler.Assemble(ctx, req.Text, result.Candidates)
	if err != nil {
		outcome = outcomeError
		span.RecordError(err)
		return nil, fmt.Errorf("assembling answer: %w", err)
	}

	report, err := e.validator.Validate(ctx, req.Text, draft.Answer, qc)
	if err != nil {
		outcome = outcomeError
		span.RecordError(err)
		return nil, fmt.Errorf("validating answer: %w", err)
	}

	resp := &QueryResponse{
		Answer:      draft.Answer,
		Confidence:  scoring.AnswerConfidence(result.Candidates, report.Overall),
		IsValid:     report.IsValid,
		Sources:     sourcesOf(result.Candidates),
		Suggestions: report.Suggestions,
		Validation:  report,
		Fallback:    draft.Fallback,
		Model:       draft.Model,
		Degraded:    degraded,
	}

	span.SetAttributes(
		attribute.Int("query.sources", len(resp.Sources)),
		attribute.Float64("query.confidence", resp.Confidence),
		attribute.Bool("query.valid", resp.IsValid),
		attribute.Bool("query.fallback", resp.Fallback),
	)
	e.metrics.RecordConfidence(ctx, resp.Confidence)
	e.logger.Debug("query answered",
		zap.Int("sources", len(resp.Sources)),
		zap.Float64("confidence", resp.Confidence),
		zap.Bool("is_valid", resp.IsValid),
		zap.Bool("fallback", resp.Fallback))

	return resp, nil
}

func sourcesOf(candidates []knowledge.Candidate) []Source {
	sources := make([]Source, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, Source{
			ID:     c.Record.ID,
			Origin: string(c.Record.Origin),
			Score:  c.FinalScore,
		})
	}
	return sources
}

// FeedbackRequest is one agent feedback submission on a served answer.
type FeedbackRequest struct {
	// FeedbackID lets a client retry a failed submission idempotently;
	// one is assigned when absent.
	FeedbackID string `json:"feedback_id,omitempty"`

	Question         string   `json:"question"`
	Answer           string   `json:"answer"`
	Rating           int      `json:"rating"`
	Comment          string   `json:"comment,omitempty"`
	ManualSolution   string   `json:"manual_solution,omitempty"`
	AgentID          string   `json:"agent_id,omitempty"`
	Brand            string   `json:"brand,omitempty"`
	ProductCategory  string   `json:"product_category,omitempty"`
	IssueCategory    string   `json:"issue_category,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	ValidationScore  float64  `json:"validation_score,omitempty"`
	ResolutionMethod string   `json:"resolution_method,omitempty"`
}

func (r FeedbackRequest) event() feedback.Event {
	return feedback.Event{
		FeedbackID:       r.FeedbackID,
		QueryText:        r.Question,
		AnswerText:       r.Answer,
		Rating:           r.Rating,
		Comment:          r.Comment,
		ManualSolution:   r.ManualSolution,
		AgentID:          r.AgentID,
		Brand:            r.Brand,
		ProductCategory:  r.ProductCategory,
		IssueCategory:    r.IssueCategory,
		Tags:             r.Tags,
		ValidationScore:  r.ValidationScore,
		ResolutionMethod: r.ResolutionMethod,
	}
}

// Feedback runs one feedback submission through the learning loop and
// returns its terminal receipt.
//
// Validation failures surface feedback.ErrInvalidEvent; a feedback log
// write failure surfaces feedback.ErrLogWrite and the client retries with
// the same FeedbackID.
func (e *Engine) Feedback(ctx context.Context, req FeedbackRequest) (*feedback.Receipt, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.Feedback")
	defer span.End()

	receipt, err := e.feedback.Process(ctx, req.event())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("feedback.outcome", string(receipt.Outcome)),
		attribute.Bool("feedback.merged", receipt.Merged),
	)
	return receipt, nil
}

// CorpusStats describes one knowledge corpus.
type CorpusStats struct {
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`

	// Available is false when the corpus store could not be counted.
	Available bool `json:"available"`
}

// GenerationStats describes the answer generation backend.
type GenerationStats struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
}

// StatsReport is the system snapshot served by the stats endpoint.
type StatsReport struct {
	Reference  CorpusStats     `json:"reference"`
	Learned    CorpusStats     `json:"learned"`
	Feedback   feedback.Stats  `json:"feedback"`
	Generation GenerationStats `json:"generation"`
}

// Stats reports corpus sizes, feedback counters, and backend
// availability. A corpus that cannot be counted appears with Available
// false instead of failing the whole report.
func (e *Engine) Stats(ctx context.Context) *StatsReport {
	ctx, span := engineTracer.Start(ctx, "Engine.Stats")
	defer span.End()

	return &StatsReport{
		Reference: e.corpusStats(ctx, e.reference),
		Learned:   e.corpusStats(ctx, e.learned),
		Feedback:  e.feedback.Stats(),
		Generation: GenerationStats{
			Provider:  e.generator.Name(),
			Available: e.generator.Available(),
		},
	}
}

func (e *Engine) corpusStats(ctx context.Context, corpus search.Corpus) CorpusStats {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	stats := CorpusStats{Collection: corpus.Collection}
	count, err := corpus.Store.Count(ctx, corpus.Collection)
	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		// Not yet seeded. The store itself is fine.
		stats.Available = true
	case err != nil:
		e.logger.Warn("corpus count failed",
			zap.String("collection", corpus.Collection),
			zap.Error(err))
	default:
		stats.Documents = count
		stats.Available = true
	}
	return stats
}

// HealthReport is the component availability snapshot behind the health
// endpoint.
type HealthReport struct {
	Status     string `json:"status"`
	Reference  bool   `json:"reference"`
	Learned    bool   `json:"learned"`
	Generation bool   `json:"generation"`
}

// Healthy reports whether both corpora are reachable.
func (h *HealthReport) Healthy() bool { return h.Reference && h.Learned }

// Health probes both corpus stores and the generation backend. An
// unavailable generator degrades answers to excerpts but never the
// service, so it does not affect Status.
func (e *Engine) Health(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	report := &HealthReport{
		Reference:  e.reference.Store.Healthy(ctx) == nil,
		Learned:    e.learned.Store.Healthy(ctx) == nil,
		Generation: e.generator.Available(),
	}
	report.Status = "degraded"
	if report.Healthy() {
		report.Status = "ok"
	}
	return report
}

// SeedDocument is one curated reference entry to load.
type SeedDocument struct {
	Question        string   `json:"question"`
	Solution        string   `json:"solution"`
	Brand           string   `json:"brand,omitempty"`
	ProductCategory string   `json:"product_category,omitempty"`
	DocType         string   `json:"doc_type,omitempty"`
	IssueCategory   string   `json:"issue_category,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// SeedReport summarizes one seeding run.
type SeedReport struct {
	Seeded int      `json:"seeded"`
	IDs    []string `json:"ids"`

	// Warnings flags documents whose text looks like it carries
	// credentials. Flagged documents are stored anyway; curation is the
	// operator's call.
	Warnings []string `json:"warnings,omitempty"`
}

// SeedReference validates, embeds, and loads curated documents into the
// reference corpus.
//
// The batch is all-or-nothing: a validation failure on any document
// rejects the whole request before anything is embedded or stored.
func (e *Engine) SeedReference(ctx context.Context, docs []SeedDocument) (_ *SeedReport, err error) {
	ctx, span := engineTracer.Start(ctx, "Engine.SeedReference")
	defer span.End()

	defer func() {
		if err == nil {
			e.metrics.RecordSeed(ctx, len(docs))
		}
	}()

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents", ErrInvalidSeed)
	}

	records := make([]*knowledge.Record, 0, len(docs))
	texts := make([]string, 0, len(docs))
	var warnings []string
	for i, doc := range docs {
		rec, recErr := knowledge.NewReferenceRecord(doc.Question, doc.Solution)
		if recErr != nil {
			return nil, fmt.Errorf("%w: document %d: %v", ErrInvalidSeed, i, recErr)
		}
		if doc.DocType != "" && !knowledge.DocType(doc.DocType).Valid() {
			return nil, fmt.Errorf("%w: document %d: unknown doc type %q", ErrInvalidSeed, i, doc.DocType)
		}
		rec.Brand = doc.Brand
		rec.ProductCategory = doc.ProductCategory
		rec.DocType = knowledge.DocType(doc.DocType)
		rec.IssueCategory = doc.IssueCategory
		rec.Tags = doc.Tags

		if e.scrubber != nil && e.scrubber.Check(rec.EmbeddingText()) {
			warnings = append(warnings, fmt.Sprintf("document %d contains credential-shaped content", i))
			e.logger.Warn("reference document flagged by secret detector",
				zap.Int("document", i))
		}

		records = append(records, rec)
		texts = append(texts, rec.EmbeddingText())
	}

	if err := e.reference.Store.EnsureCollection(ctx, e.reference.Collection, e.embedder.Dimension()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ensuring reference collection: %w", err)
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding reference documents: %w", err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d documents", len(vectors), len(records))
	}

	batch := make([]vectorstore.Document, 0, len(records))
	for i, rec := range records {
		batch = append(batch, rec.ToDocument(vectors[i]))
	}
	ids, err := e.reference.Store.Upsert(ctx, e.reference.Collection, batch)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("storing reference documents: %w", err)
	}

	e.logger.Info("reference corpus seeded",
		zap.String("collection", e.reference.Collection),
		zap.Int("documents", len(ids)),
		zap.Int("flagged", len(warnings)))

	return &SeedReport{Seeded: len(ids), IDs: ids, Warnings: warnings}, nil
}
