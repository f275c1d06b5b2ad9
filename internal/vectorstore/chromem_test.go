package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()

	store, err := NewChromemStore(ChromemConfig{
		Path:       filepath.Join(t.TempDir(), "vectorstore"),
		VectorSize: 3,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testDocs() []Document {
	return []Document{
		{
			ID:        "doc-1",
			Content:   "Question: TV won't turn on\nSolution: Check the power cable",
			Embedding: []float32{1, 0, 0},
			Metadata:  map[string]string{"brand": "samsung", "doc_type": "troubleshooting"},
		},
		{
			ID:        "doc-2",
			Content:   "Question: Fridge too warm\nSolution: Adjust the thermostat",
			Embedding: []float32{0, 1, 0},
			Metadata:  map[string]string{"brand": "lg", "doc_type": "faq"},
		},
		{
			ID:        "doc-3",
			Content:   "Question: TV screen flickers\nSolution: Update the firmware",
			Embedding: []float32{0.7071, 0.7071, 0},
			Metadata:  map[string]string{"brand": "samsung", "doc_type": "faq"},
		},
	}
}

func TestChromemStore_EnsureCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	// Idempotent
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	count, err := store.Count(ctx, "kb_test")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestChromemStore_EnsureCollection_InvalidName(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	err := store.EnsureCollection(ctx, "Invalid Name!", 3)
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
}

func TestChromemStore_Upsert(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	ids, err := store.Upsert(ctx, "kb_test", testDocs())
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1", "doc-2", "doc-3"}, ids)

	count, err := store.Count(ctx, "kb_test")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChromemStore_Upsert_OverwritesByID(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	_, err := store.Upsert(ctx, "kb_test", testDocs()[:1])
	require.NoError(t, err)

	updated := testDocs()[0]
	updated.Content = "Question: TV won't turn on\nSolution: Replace the power supply"
	_, err = store.Upsert(ctx, "kb_test", []Document{updated})
	require.NoError(t, err)

	count, err := store.Count(ctx, "kb_test")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.Get(ctx, "kb_test", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, got.Content, "Replace the power supply")
}

func TestChromemStore_Upsert_Validation(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	t.Run("empty batch", func(t *testing.T) {
		_, err := store.Upsert(ctx, "kb_test", nil)
		assert.ErrorIs(t, err, ErrEmptyDocuments)
	})

	t.Run("missing embedding", func(t *testing.T) {
		_, err := store.Upsert(ctx, "kb_test", []Document{{ID: "x", Content: "y"}})
		assert.ErrorIs(t, err, ErrMissingEmbedding)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := store.Upsert(ctx, "kb_test", []Document{
			{ID: "x", Content: "y", Embedding: []float32{1, 0}},
		})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("missing ID", func(t *testing.T) {
		_, err := store.Upsert(ctx, "kb_test", []Document{
			{Content: "y", Embedding: []float32{1, 0, 0}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no ID")
	})
}

func TestChromemStore_Query(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	_, err := store.Upsert(ctx, "kb_test", testDocs())
	require.NoError(t, err)

	results, err := store.Query(ctx, "kb_test", []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "doc-1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Equal(t, "doc-3", results[1].ID)
	assert.InDelta(t, 0.7071, results[1].Score, 0.01)
	assert.Equal(t, "samsung", results[0].Metadata["brand"])
	assert.NotEmpty(t, results[0].Embedding)
}

func TestChromemStore_Query_Filters(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	_, err := store.Upsert(ctx, "kb_test", testDocs())
	require.NoError(t, err)

	results, err := store.Query(ctx, "kb_test", []float32{1, 0, 0}, 3, map[string]string{"brand": "lg"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-2", results[0].ID)
}

func TestChromemStore_Query_CapsKAtCount(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	_, err := store.Upsert(ctx, "kb_test", testDocs()[:2])
	require.NoError(t, err)

	results, err := store.Query(ctx, "kb_test", []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestChromemStore_Query_EmptyCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_empty", 3))

	results, err := store.Query(ctx, "kb_empty", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Query_MissingCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.Query(ctx, "kb_missing", []float32{1, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemStore_Query_DimensionMismatch(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	_, err := store.Query(ctx, "kb_test", []float32{1, 0}, 5, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_Get(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	_, err := store.Upsert(ctx, "kb_test", testDocs())
	require.NoError(t, err)

	got, err := store.Get(ctx, "kb_test", "doc-2")
	require.NoError(t, err)
	assert.Equal(t, "doc-2", got.ID)
	assert.Equal(t, "lg", got.Metadata["brand"])

	_, err = store.Get(ctx, "kb_test", "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChromemStore_Delete(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))

	_, err := store.Upsert(ctx, "kb_test", testDocs())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "kb_test", []string{"doc-1", "doc-3"}))

	count, err := store.Count(ctx, "kb_test")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, "kb_test", "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectorstore")
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, "kb_test", 3))
	_, err = store.Upsert(ctx, "kb_test", testDocs())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.EnsureCollection(ctx, "kb_test", 3))

	count, err := reopened.Count(ctx, "kb_test")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChromemStore_Healthy(t *testing.T) {
	store := newTestChromemStore(t)
	assert.NoError(t, store.Healthy(context.Background()))
}

func TestNoEmbedFunc(t *testing.T) {
	_, err := noEmbedFunc()(context.Background(), "text")
	assert.ErrorIs(t, err, ErrMissingEmbedding)
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "knowledge", false},
		{"valid with underscore", "kb_reference", false},
		{"valid with digits", "kb_v2", false},
		{"empty", "", true},
		{"uppercase", "Knowledge", true},
		{"spaces", "kb reference", true},
		{"hyphen", "kb-reference", true},
		{"too long", string(make([]byte, 65)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmbeddings(t *testing.T) {
	docs := []Document{{ID: "a", Embedding: []float32{1, 0, 0}}}

	assert.NoError(t, validateEmbeddings(docs, 3))
	assert.ErrorIs(t, validateEmbeddings(docs, 4), ErrDimensionMismatch)
	assert.True(t, errors.Is(validateEmbeddings([]Document{{ID: "a"}}, 3), ErrMissingEmbedding))
}
