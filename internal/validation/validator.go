package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/generation"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

var validationTracer = otel.Tracer("supportd.validation.validator")

// ErrEmptyInput is returned when the query or answer is blank.
var ErrEmptyInput = errors.New("query and answer are required")

// Strategy names recorded in Report.Strategy.
const (
	StrategyLLM       = "llm"
	StrategyHeuristic = "heuristic"
)

// Axis weights and thresholds. Fixed product decisions, not configuration.
const (
	completenessWeight = 0.3
	accuracyWeight     = 0.4
	relevanceWeight    = 0.3

	// validThreshold is the overall score at which an answer passes.
	validThreshold = 0.7

	// suggestionThreshold is the per-axis score below which an invalid
	// report carries an improvement suggestion for that axis.
	suggestionThreshold = 0.6
)

// DefaultBudget bounds a single validation call.
const DefaultBudget = 3 * time.Second

// Fixed suggestion phrasing per axis.
const (
	suggestCompleteness = "Answer may be incomplete: consider addressing all parts of the question"
	suggestAccuracy     = "Answer could include more specific steps or technical details"
	suggestRelevance    = "Answer may not be specific enough to the product or brand mentioned"
)

// Report is the outcome of validating one answer.
type Report struct {
	// Overall is the weighted combination of the three axis scores.
	Overall float64 `json:"overall"`

	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Relevance    float64 `json:"relevance"`

	// IsValid reports whether Overall met the passing threshold.
	IsValid bool `json:"is_valid"`

	// Suggestions carries one improvement hint per weak axis. Only
	// populated when the answer failed validation.
	Suggestions []string `json:"suggestions,omitempty"`

	// Strategy records which path produced the scores: llm or heuristic.
	Strategy string `json:"strategy"`
}

// axisScores is an internal triple produced by either strategy.
type axisScores struct {
	completeness float64
	accuracy     float64
	relevance    float64
}

// Config tunes the validator.
type Config struct {
	// Strategy selects the primary path: heuristic (default) or llm.
	Strategy string

	// Budget bounds one validation call.
	Budget time.Duration
}

func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyHeuristic
	}
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
}

// FromAppConfig builds a validator Config from the application config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		Strategy: appCfg.Validation.Strategy,
		Budget:   appCfg.Validation.Timeout.Duration(),
	}
}

// Validator scores answers with a primary strategy and a heuristic
// fallback.
type Validator struct {
	generator generation.Generator
	config    Config
	logger    *zap.Logger
	metrics   *Metrics
}

// NewValidator creates a validator. The generator may be nil, which pins
// the validator to the heuristic strategy regardless of configuration.
func NewValidator(generator generation.Generator, cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Validator{
		generator: generator,
		config:    cfg,
		logger:    logger,
		metrics:   NewMetrics(logger),
	}
}

// Validate scores an answer against the query and its product context.
//
// The LLM strategy is used when configured and available; a malformed
// response, generator failure, or blown budget falls back to the
// heuristics, so a non-empty input always yields a report.
func (v *Validator) Validate(ctx context.Context, query, answer string, qc knowledge.QueryContext) (*Report, error) {
	ctx, span := validationTracer.Start(ctx, "Validator.Validate")
	defer span.End()

	start := time.Now()

	if strings.TrimSpace(query) == "" || strings.TrimSpace(answer) == "" {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.Budget)
	defer cancel()

	scores, strategy := v.score(ctx, query, answer, qc)
	report := buildReport(scores, strategy)

	v.metrics.RecordValidation(ctx, strategy, time.Since(start), report.IsValid)
	span.SetAttributes(
		attribute.String("validation.strategy", strategy),
		attribute.Float64("validation.overall", report.Overall),
		attribute.Bool("validation.valid", report.IsValid),
	)

	return report, nil
}

// Pair is one query/answer pair for batch validation.
type Pair struct {
	Query   string
	Answer  string
	Context knowledge.QueryContext
}

// ValidateBatch validates pairs sequentially, each under its own budget.
func (v *Validator) ValidateBatch(ctx context.Context, pairs []Pair) ([]*Report, error) {
	reports := make([]*Report, 0, len(pairs))
	for i, p := range pairs {
		report, err := v.Validate(ctx, p.Query, p.Answer, p.Context)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// score runs the primary strategy and falls back to the heuristics.
func (v *Validator) score(ctx context.Context, query, answer string, qc knowledge.QueryContext) (axisScores, string) {
	if v.config.Strategy == StrategyLLM && v.generator != nil && v.generator.Available() {
		scores, err := v.llmScores(ctx, query, answer, qc)
		if err == nil {
			return scores, StrategyLLM
		}
		v.logger.Warn("llm validation failed, falling back to heuristics",
			zap.Error(err))
		v.metrics.RecordFallback(ctx)
	}
	return heuristicScores(query, answer, qc), StrategyHeuristic
}

// buildReport combines axis scores into the weighted report.
func buildReport(s axisScores, strategy string) *Report {
	overall := completenessWeight*s.completeness +
		accuracyWeight*s.accuracy +
		relevanceWeight*s.relevance

	report := &Report{
		Overall:      overall,
		Completeness: s.completeness,
		Accuracy:     s.accuracy,
		Relevance:    s.relevance,
		IsValid:      overall >= validThreshold,
		Strategy:     strategy,
	}
	if !report.IsValid {
		report.Suggestions = axisSuggestions(s)
	}
	return report
}

// axisSuggestions returns one fixed hint per axis under the suggestion
// threshold, in completeness, accuracy, relevance order.
func axisSuggestions(s axisScores) []string {
	var out []string
	if s.completeness < suggestionThreshold {
		out = append(out, suggestCompleteness)
	}
	if s.accuracy < suggestionThreshold {
		out = append(out, suggestAccuracy)
	}
	if s.relevance < suggestionThreshold {
		out = append(out, suggestRelevance)
	}
	return out
}
