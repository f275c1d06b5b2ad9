// Package generation provides LLM answer generation via multiple providers.
//
// A Generator turns a system prompt plus user prompt into free text. The
// anthropic and openai providers are plain HTTP clients with rate limiting
// and bounded retries; the disabled provider reports Available() == false so
// callers can fall back to excerpt-based answers without special-casing nil.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

var (
	// ErrGenerationUnavailable indicates no generator is configured or the
	// backend cannot be reached.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrInvalidConfig indicates invalid generator configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"

	defaultTimeout     = 5 * time.Second
	defaultMaxTokens   = 4000
	defaultBaseBackoff = 500 * time.Millisecond

	// Conservative client-side rate limit, bursts absorb concurrent requests.
	defaultRateLimit = 2.0
	defaultBurst     = 5
)

// Request describes a single generation call.
type Request struct {
	// System is the system prompt establishing role and constraints.
	System string
	// Prompt is the user-turn content.
	Prompt string
	// MaxTokens caps the response length. Defaults to 4000 when zero.
	MaxTokens int
	// Temperature controls sampling randomness. Passed through as-is.
	Temperature float64
}

// Response carries the generated text and usage accounting.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator produces free-text answers from prompts.
type Generator interface {
	// Generate produces a completion for the request.
	Generate(ctx context.Context, req Request) (*Response, error)
	// Available reports whether this generator can serve requests.
	Available() bool
	// Name identifies the provider ("anthropic", "openai", "disabled").
	Name() string
}

// Config holds configuration for creating a generator.
type Config struct {
	// Provider is "anthropic", "openai", or "disabled".
	Provider string
	// Model overrides the provider default model.
	Model string
	// BaseURL overrides the provider API endpoint.
	BaseURL string
	// APIKey authenticates against the provider.
	APIKey string
	// Timeout bounds a single HTTP attempt. Defaults to 5s.
	Timeout time.Duration
	// MaxRetries bounds transport-level retries per Generate call.
	MaxRetries int
	// RequestsPerSecond is the client-side rate limit. Defaults to 2.
	RequestsPerSecond float64
}

// FromAppConfig builds a generator Config from the application config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		Provider:          appCfg.Generation.Provider,
		Model:             appCfg.Generation.Model,
		BaseURL:           appCfg.Generation.BaseURL,
		APIKey:            appCfg.Generation.APIKey.Value(),
		Timeout:           appCfg.Generation.Timeout.Duration(),
		MaxRetries:        appCfg.Generation.MaxRetries,
		RequestsPerSecond: appCfg.Generation.RequestsPerSecond,
	}
}

// NewGenerator creates a generator based on the configuration.
func NewGenerator(cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "disabled", "":
		return NewDisabledGenerator(), nil
	case "anthropic":
		return NewAnthropicGenerator(cfg, logger)
	case "openai":
		return NewOpenAIGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
