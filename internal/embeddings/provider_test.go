package embeddings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "word2vec"}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "word2vec")
}

func TestNewProvider_TEI(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		Provider: "tei",
		Model:    "BAAI/bge-small-en-v1.5",
		BaseURL:  "http://localhost:8080",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, 384, p.Dimension())
}

func TestNewProvider_TEI_MissingBaseURL(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "tei"}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_OpenAI(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		Provider: "openai",
		Model:    "text-embedding-3-small",
		BaseURL:  "https://api.openai.com/v1",
		APIKey:   "test-key",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, 1536, p.Dimension())
}

func TestNewProvider_OpenAI_MissingModel(t *testing.T) {
	_, err := NewProvider(ProviderConfig{
		Provider: "openai",
		BaseURL:  "https://api.openai.com/v1",
	}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-small-zh-v1.5", 512},
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"custom-base-model", 768},
		{"custom-large-model", 1024},
		{"custom-small-model", 384},
		{"something-else", 384},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	appCfg := &config.Config{}
	appCfg.Embeddings.Provider = "tei"
	appCfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	appCfg.Embeddings.BaseURL = "http://tei.internal:8080"
	appCfg.Embeddings.APIKey = config.Secret("tei-token")
	appCfg.Embeddings.CacheDir = "/var/cache/supportd"
	appCfg.Embeddings.Timeout = config.Duration(10 * time.Second)

	cfg := FromAppConfig(appCfg)

	assert.Equal(t, "tei", cfg.Provider)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Model)
	assert.Equal(t, "http://tei.internal:8080", cfg.BaseURL)
	assert.Equal(t, "tei-token", cfg.APIKey)
	assert.Equal(t, "/var/cache/supportd", cfg.CacheDir)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}
