// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingUnavailable indicates the embedding backend failed or is unreachable
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
)

// Provider is the interface for embedding providers.
type Provider interface {
	// EmbedQuery generates an embedding for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedDocuments generates embeddings for multiple document texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed", "tei", or "openai"
	Provider string
	// Model is the embedding model name
	Model string
	// BaseURL is the API endpoint (TEI and OpenAI-compatible providers)
	BaseURL string
	// APIKey authenticates against the API (optional for TEI)
	APIKey string
	// CacheDir is the model cache directory (FastEmbed only)
	CacheDir string
	// Timeout bounds a single embedding request (HTTP providers)
	Timeout time.Duration
}

// FromAppConfig builds a ProviderConfig from the application config.
func FromAppConfig(appCfg *config.Config) ProviderConfig {
	return ProviderConfig{
		Provider: appCfg.Embeddings.Provider,
		Model:    appCfg.Embeddings.Model,
		BaseURL:  appCfg.Embeddings.BaseURL,
		APIKey:   appCfg.Embeddings.APIKey.Value(),
		CacheDir: appCfg.Embeddings.CacheDir,
		Timeout:  appCfg.Embeddings.Timeout.Duration(),
	}
}

// modelNameDimensions maps well-known model names to embedding dimensions.
var modelNameDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                  384,
	"BAAI/bge-small-en":                       384,
	"BAAI/bge-base-en-v1.5":                   768,
	"BAAI/bge-base-en":                        768,
	"BAAI/bge-small-zh-v1.5":                  512,
	"sentence-transformers/all-MiniLM-L6-v2":  384,
	"fast-bge-small-en-v1.5":                  384,
	"fast-bge-small-en":                       384,
	"fast-bge-base-en-v1.5":                   768,
	"fast-bge-base-en":                        768,
	"fast-bge-small-zh-v1.5":                  512,
	"fast-all-MiniLM-L6-v2":                   384,
	"text-embedding-3-small":                  1536,
	"text-embedding-3-large":                  3072,
	"text-embedding-ada-002":                  1536,
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := modelNameDimensions[model]; ok {
		return dim
	}
	// Common model dimension patterns
	switch {
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384 // Safe default for bge-small
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger)
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
