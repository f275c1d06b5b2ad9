// Package config provides configuration loading for supportd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides and sensible defaults. This package covers server, retrieval,
// store, model provider, and observability settings.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete supportd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Generation  GenerationConfig  `koanf:"generation"`
	Validation  ValidationConfig  `koanf:"validation"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Feedback    FeedbackConfig    `koanf:"feedback"`
	Events      EventsConfig      `koanf:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Reloadable at runtime via the config watcher.
	Level string `koanf:"level"`

	// Format selects the encoder: json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `koanf:"endpoint"`

	// Protocol selects the OTLP transport: grpc or http.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `koanf:"insecure"`
}

// VectorStoreConfig holds vector storage configuration.
type VectorStoreConfig struct {
	// Provider selects the backend: chromem (default), qdrant, pgvector.
	Provider string `koanf:"provider"`

	// VectorSize is the embedding dimensionality. MUST match the
	// embedding provider's output dimension.
	VectorSize int `koanf:"vector_size"`

	// ReferenceCollection holds curated support documents.
	ReferenceCollection string `koanf:"reference_collection"`

	// LearnedCollection holds records promoted from feedback.
	LearnedCollection string `koanf:"learned_collection"`

	Chromem  ChromemSettings  `koanf:"chromem"`
	Qdrant   QdrantSettings   `koanf:"qdrant"`
	Pgvector PgvectorSettings `koanf:"pgvector"`
}

// ChromemSettings holds settings for the embedded chromem backend.
type ChromemSettings struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantSettings holds settings for the Qdrant gRPC backend.
type QdrantSettings struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
}

// PgvectorSettings holds settings for the PostgreSQL/pgvector backend.
type PgvectorSettings struct {
	DSN      Secret `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider selects the backend: fastembed (default), tei, openai.
	Provider string `koanf:"provider"`

	// Model is the embedding model identifier.
	Model string `koanf:"model"`

	// BaseURL is the endpoint for remote providers (tei, openai).
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates remote providers that require it.
	APIKey Secret `koanf:"api_key"`

	// CacheDir stores downloaded model weights for fastembed.
	CacheDir string `koanf:"cache_dir"`

	// Timeout bounds a single embedding call.
	Timeout Duration `koanf:"timeout"`
}

// GenerationConfig holds answer generation provider configuration.
type GenerationConfig struct {
	// Provider selects the backend: disabled (default), anthropic, openai.
	// When disabled, answers fall back to the top candidate's solution text.
	Provider string `koanf:"provider"`

	// Model is the chat model identifier.
	Model string `koanf:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates the provider.
	APIKey Secret `koanf:"api_key"`

	// Timeout bounds a single generation call.
	Timeout Duration `koanf:"timeout"`

	// MaxTokens caps the generated answer length.
	MaxTokens int `koanf:"max_tokens"`

	// MaxRetries is the number of retries after a failed call.
	MaxRetries int `koanf:"max_retries"`

	// RequestsPerSecond rate-limits outbound calls.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// ValidationConfig holds answer validation configuration.
type ValidationConfig struct {
	// Strategy selects the validator: heuristic (default) or llm.
	Strategy string `koanf:"strategy"`

	// Timeout bounds a single validation call.
	Timeout Duration `koanf:"timeout"`
}

// RetrievalConfig holds retrieval tuning.
type RetrievalConfig struct {
	// Limit is the default number of candidates returned per query.
	// Reloadable at runtime via the config watcher.
	Limit int `koanf:"limit"`

	// MaxLimit caps the per-request limit override.
	MaxLimit int `koanf:"max_limit"`

	// StoreTimeout bounds each per-store search call.
	StoreTimeout Duration `koanf:"store_timeout"`
}

// FeedbackConfig holds the feedback pipeline configuration.
type FeedbackConfig struct {
	// LogPath is the append-only feedback event log (JSONL).
	LogPath string `koanf:"log_path"`

	// DisableRedaction turns off credential scrubbing of free-text
	// fields before they are logged or promoted. Redaction is on by
	// default.
	DisableRedaction bool `koanf:"disable_redaction"`

	// AllowlistPath points to an optional TOML allowlist for the
	// credential scanner.
	AllowlistPath string `koanf:"allowlist_path"`

	// DisableMerge turns off merge-on-promotion. With merging off a
	// promotion always inserts a new learned record, even when a
	// near-duplicate already exists.
	DisableMerge bool `koanf:"disable_merge"`
}

// EventsConfig holds the usage event stream configuration.
type EventsConfig struct {
	// Enabled turns on NATS usage event publishing.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server URL.
	URL string `koanf:"url"`

	// SubjectPrefix is prepended to every published subject.
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q (must be json or console)", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("invalid telemetry protocol: %q (must be grpc or http)", c.Telemetry.Protocol)
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant", "pgvector":
	default:
		return fmt.Errorf("invalid vectorstore provider: %q (must be chromem, qdrant or pgvector)", c.VectorStore.Provider)
	}
	if c.VectorStore.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", c.VectorStore.VectorSize)
	}
	if c.VectorStore.ReferenceCollection == "" || c.VectorStore.LearnedCollection == "" {
		return errors.New("reference and learned collection names are required")
	}
	if c.VectorStore.ReferenceCollection == c.VectorStore.LearnedCollection {
		return errors.New("reference and learned collections must differ")
	}
	if c.VectorStore.Provider == "pgvector" && !c.VectorStore.Pgvector.DSN.IsSet() {
		return errors.New("pgvector provider requires a dsn")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei", "openai":
	default:
		return fmt.Errorf("invalid embeddings provider: %q (must be fastembed, tei or openai)", c.Embeddings.Provider)
	}

	switch c.Generation.Provider {
	case "disabled", "anthropic", "openai":
	default:
		return fmt.Errorf("invalid generation provider: %q (must be disabled, anthropic or openai)", c.Generation.Provider)
	}
	if c.Generation.MaxRetries < 0 {
		return errors.New("generation max retries cannot be negative")
	}

	switch c.Validation.Strategy {
	case "heuristic", "llm":
	default:
		return fmt.Errorf("invalid validation strategy: %q (must be heuristic or llm)", c.Validation.Strategy)
	}
	if c.Validation.Strategy == "llm" && c.Generation.Provider == "disabled" {
		return errors.New("llm validation requires a generation provider")
	}

	if c.Retrieval.Limit < 1 {
		return fmt.Errorf("retrieval limit must be positive, got %d", c.Retrieval.Limit)
	}
	if c.Retrieval.MaxLimit < c.Retrieval.Limit {
		return fmt.Errorf("retrieval max limit %d cannot be below the default limit %d", c.Retrieval.MaxLimit, c.Retrieval.Limit)
	}
	if c.Retrieval.StoreTimeout.Duration() <= 0 {
		return errors.New("retrieval store timeout must be positive")
	}

	if c.Feedback.LogPath == "" {
		return errors.New("feedback log path is required")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events url required when events are enabled")
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "supportd"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.VectorSize == 0 {
		cfg.VectorStore.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}
	if cfg.VectorStore.ReferenceCollection == "" {
		cfg.VectorStore.ReferenceCollection = "kb_reference"
	}
	if cfg.VectorStore.LearnedCollection == "" {
		cfg.VectorStore.LearnedCollection = "kb_learned"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/supportd/vectorstore"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = "~/.cache/supportd/models"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(10 * time.Second)
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "disabled"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = Duration(5 * time.Second)
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1024
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 1
	}
	if cfg.Generation.RequestsPerSecond == 0 {
		cfg.Generation.RequestsPerSecond = 2
	}

	if cfg.Validation.Strategy == "" {
		cfg.Validation.Strategy = "heuristic"
	}
	if cfg.Validation.Timeout == 0 {
		cfg.Validation.Timeout = Duration(3 * time.Second)
	}

	if cfg.Retrieval.Limit == 0 {
		cfg.Retrieval.Limit = 5
	}
	if cfg.Retrieval.MaxLimit == 0 {
		cfg.Retrieval.MaxLimit = 20
	}
	if cfg.Retrieval.StoreTimeout == 0 {
		cfg.Retrieval.StoreTimeout = Duration(2 * time.Second)
	}

	if cfg.Feedback.LogPath == "" {
		cfg.Feedback.LogPath = "~/.config/supportd/feedback/events.jsonl"
	}

	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "knowledge.usage"
	}
}
