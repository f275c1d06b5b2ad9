// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"errors"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when a document embedding does not
	// match the collection's configured vector size. The batch is rejected
	// before anything is written.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMissingEmbedding is returned for documents without a precomputed
	// embedding. Stores never embed; callers embed via the embedding port.
	ErrMissingEmbedding = errors.New("document has no embedding")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates a backend connection failure.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")
)

// collectionNameRE enforces lowercase alphanumeric plus underscore, 1-64
// chars. Qdrant's constraint; applied uniformly so names stay portable
// across backends.
var collectionNameRE = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName checks that a collection name is valid for all
// store implementations.
func ValidateCollectionName(name string) error {
	if !collectionNameRE.MatchString(name) {
		return ErrInvalidCollectionName
	}
	return nil
}

// Store is the vector storage port shared by the reference and learned
// corpora.
//
// Implementations never compute embeddings. Documents arrive with vectors
// attached and queries arrive as vectors, so the search path embeds a
// query exactly once regardless of how many collections it fans out to.
// Every implementation validates embedding dimensions against the
// collection's configured size before writing.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default)
//   - QdrantStore: external Qdrant over gRPC
//   - PgvectorStore: Postgres with the pgvector extension
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	// vectorSize 0 means "use the store's configured default".
	EnsureCollection(ctx context.Context, name string, vectorSize int) error

	// Upsert inserts or replaces documents by ID and returns the stored IDs.
	// The whole batch is rejected with ErrDimensionMismatch if any embedding
	// has the wrong dimension, and ErrMissingEmbedding if any is absent.
	Upsert(ctx context.Context, collection string, docs []Document) ([]string, error)

	// Query performs similarity search with a precomputed query vector.
	//
	// Results are ordered by descending similarity and include stored
	// embeddings where the backend can return them. filters are exact-match
	// metadata constraints; nil means unfiltered.
	Query(ctx context.Context, collection string, vector []float32, k int, filters map[string]string) ([]SearchResult, error)

	// Get fetches a single document by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, collection string, id string) (*SearchResult, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Healthy reports whether the backend is reachable.
	Healthy(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
