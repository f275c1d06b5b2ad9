package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/generation"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

var answerTracer = otel.Tracer("supportd.answer.assembler")

// ErrNoCandidates is returned when Assemble is called with nothing to
// ground an answer on. Callers short-circuit to the no-knowledge
// response before reaching the assembler.
var ErrNoCandidates = errors.New("no candidates to assemble from")

const (
	// DefaultTimeout bounds one generation call including its retry.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxContextCandidates caps how many candidates enter the
	// context window.
	DefaultMaxContextCandidates = 3

	// DefaultExcerptLength caps the solution text quoted per candidate,
	// in runes.
	DefaultExcerptLength = 600

	// DefaultMaxTokens caps the generated answer length.
	DefaultMaxTokens = 1024

	// answerTemperature leaves room for fluent phrasing while the system
	// prompt pins the content to the provided context.
	answerTemperature = 0.7
)

// UsageRecorder receives fire-and-forget usage increments for candidates
// that contributed to an answer. Implementations must not block.
type UsageRecorder interface {
	RecordUsage(origin, recordID string)
}

// Draft is an assembled answer ready for validation and delivery.
type Draft struct {
	// Answer is the text to show the customer.
	Answer string

	// Fallback reports that generation was unavailable and Answer is the
	// top candidate's solution excerpt.
	Fallback bool

	// Model names the model that produced the answer; empty on fallback.
	Model string
}

// Config tunes the assembler. Zero values pick the defaults.
type Config struct {
	// Timeout bounds the generation call.
	Timeout time.Duration

	// MaxContextCandidates caps candidates in the context window.
	MaxContextCandidates int

	// ExcerptLength caps quoted solution text per candidate, in runes.
	ExcerptLength int

	// MaxTokens caps the generated answer length.
	MaxTokens int
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxContextCandidates <= 0 {
		c.MaxContextCandidates = DefaultMaxContextCandidates
	}
	if c.ExcerptLength <= 0 {
		c.ExcerptLength = DefaultExcerptLength
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
}

// FromAppConfig builds an assembler Config from the application config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		Timeout:   appCfg.Generation.Timeout.Duration(),
		MaxTokens: appCfg.Generation.MaxTokens,
	}
}

// Assembler produces answer drafts from ranked candidates.
type Assembler struct {
	generator generation.Generator
	usage     UsageRecorder
	config    Config
	logger    *zap.Logger
	metrics   *Metrics
}

// NewAssembler creates an assembler. The usage recorder may be nil, which
// disables usage counting.
func NewAssembler(generator generation.Generator, usage UsageRecorder, cfg Config, logger *zap.Logger) (*Assembler, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Assembler{
		generator: generator,
		usage:     usage,
		config:    cfg,
		logger:    logger,
		metrics:   NewMetrics(logger),
	}, nil
}

// Assemble drafts an answer for the query grounded on the candidates.
//
// The top candidates form the context window; each of them earns a usage
// increment whether or not generation succeeds, because the served answer
// is derived from the window either way. Generation failure or timeout
// degrades to the top candidate's solution excerpt with Fallback set; the
// only error is an empty candidate list.
func (a *Assembler) Assemble(ctx context.Context, query string, candidates []knowledge.Candidate) (*Draft, error) {
	ctx, span := answerTracer.Start(ctx, "Assembler.Assemble")
	defer span.End()

	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	window := candidates
	if len(window) > a.config.MaxContextCandidates {
		window = window[:a.config.MaxContextCandidates]
	}
	defer a.recordUsage(window)

	genCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.generator.Generate(genCtx, generation.Request{
		System:      answerSystem,
		Prompt:      buildPrompt(query, window, a.config.ExcerptLength),
		MaxTokens:   a.config.MaxTokens,
		Temperature: answerTemperature,
	})
	fallback := err != nil || strings.TrimSpace(resp.Text) == ""
	a.metrics.RecordAssembly(ctx, time.Since(start), len(window), fallback)

	span.SetAttributes(
		attribute.Int("answer.context_candidates", len(window)),
		attribute.Bool("answer.fallback", fallback),
	)

	if fallback {
		if err != nil {
			a.logger.Warn("generation failed, serving top candidate excerpt",
				zap.Error(err))
			span.RecordError(err)
		}
		return a.fallbackDraft(&window[0]), nil
	}

	return &Draft{Answer: resp.Text, Model: resp.Model}, nil
}

// fallbackDraft serves the strongest candidate's solution verbatim.
func (a *Assembler) fallbackDraft(top *knowledge.Candidate) *Draft {
	return &Draft{
		Answer:   excerpt(top.Record.Solution, a.config.ExcerptLength),
		Fallback: true,
	}
}

func (a *Assembler) recordUsage(window []knowledge.Candidate) {
	if a.usage == nil {
		return
	}
	for i := range window {
		record := window[i].Record
		a.usage.RecordUsage(string(record.Origin), record.ID)
	}
}
