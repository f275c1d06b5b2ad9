package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTEIServer returns a TEI stub that answers every /embed request with
// one fixed vector per input.
func newTEIServer(t *testing.T, vector []float32) (*httptest.Server, *teiRequest) {
	t.Helper()

	var lastReq teiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastReq))

		count := 1
		if texts, ok := lastReq.Inputs.([]interface{}); ok {
			count = len(texts)
		}
		vectors := make([][]float32, count)
		for i := range vectors {
			vectors[i] = vector
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
	t.Cleanup(srv.Close)

	return srv, &lastReq
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv, lastReq := newTEIServer(t, []float32{0.1, 0.2, 0.3})

	p, err := NewTEIProvider(TEIConfig{
		BaseURL: srv.URL,
		Model:   "BAAI/bge-small-en-v1.5",
	}, zap.NewNop())
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "fridge making noise")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "fridge making noise", lastReq.Inputs)
	assert.True(t, lastReq.Truncate)
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	srv, lastReq := newTEIServer(t, []float32{0.5, 0.5})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.5, 0.5}, vecs[0])

	texts, ok := lastReq.Inputs.([]interface{})
	require.True(t, ok)
	assert.Len(t, texts, 2)
}

func TestTEIProvider_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([][]float32{{0.1}})
	}))
	t.Cleanup(srv.Close)

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, APIKey: "tei-token"}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tei-token", gotAuth)
}

func TestTEIProvider_EmptyInput(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://localhost:8080"}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "503")
}

func TestTEIProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestTEIProvider_VectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{0.1}})
	}))
	t.Cleanup(srv.Close)

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "got 1 vectors for 3 texts")
}

func TestTEIConfig_Validate(t *testing.T) {
	assert.NoError(t, TEIConfig{BaseURL: "http://localhost:8080"}.Validate())
	assert.ErrorIs(t, TEIConfig{}.Validate(), ErrInvalidConfig)
}
