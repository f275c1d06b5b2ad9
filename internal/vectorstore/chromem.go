package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("supportd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector
// database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/supportd/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	// Defaults to false (Go zero value); set explicitly if desired.
	Compress bool

	// VectorSize is the expected embedding dimension for collections that
	// don't declare their own. Must match the embedding provider's output.
	// Default: 384 (FastEmbed bge-small-en-v1.5)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/supportd/vectorstore"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, persistence to gob files.
// It is the default backend, sized for corpora in the tens of thousands
// of records.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// dimensions tracks the vector size per known collection.
	dimensions sync.Map
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	store := &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return store, nil
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// noEmbedFunc returns a chromem.EmbeddingFunc that always fails.
// Documents arrive with precomputed vectors and queries are vectors, so
// chromem must never embed on our behalf; a call means a caller skipped
// the embedding port.
func noEmbedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return nil, ErrMissingEmbedding
	}
}

// collectionDim returns the configured dimension for a collection.
func (s *ChromemStore) collectionDim(name string) int {
	if v, ok := s.dimensions.Load(name); ok {
		return v.(int)
	}
	return s.config.VectorSize
}

// EnsureCollection creates the collection if it does not exist.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", vectorSize),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if vectorSize == 0 {
		vectorSize = s.config.VectorSize
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}

	// Passing nil for the embedding func would make chromem fall back to
	// its OpenAI default on persisted collections.
	if _, err := s.db.GetOrCreateCollection(name, nil, noEmbedFunc()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	s.dimensions.Store(name, vectorSize)
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("ensured chromem collection",
		zap.String("collection", name),
		zap.Int("vector_size", vectorSize),
	)

	return nil
}

// validateEmbeddings rejects the batch if any document is missing an
// embedding or carries one of the wrong dimension.
func validateEmbeddings(docs []Document, dim int) error {
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("%w: document %d (%s)", ErrMissingEmbedding, i, doc.ID)
		}
		if len(doc.Embedding) != dim {
			DimensionRejections.Inc()
			return fmt.Errorf("%w: document %d (%s) has dimension %d, collection expects %d",
				ErrDimensionMismatch, i, doc.ID, len(doc.Embedding), dim)
		}
	}
	return nil
}

// Upsert inserts or replaces documents by ID.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, docs []Document) (ids []string, err error) {
	start := time.Now()
	defer func() { observeOp("chromem", "upsert", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if err = validateEmbeddings(docs, s.collectionDim(collection)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	col := s.db.GetCollection(collection, noEmbedFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	chromemDocs := make([]chromem.Document, len(docs))
	ids = make([]string, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			err = fmt.Errorf("document at index %d has no ID", i)
			span.RecordError(err)
			return nil, err
		}
		ids[i] = doc.ID
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
		}
	}

	// Concurrency of 1: embeddings are precomputed, nothing to parallelize.
	if err = col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	DocumentsStored.WithLabelValues(collection).Set(float64(col.Count()))
	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted documents to chromem",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Query performs similarity search with a precomputed query vector.
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float32, k int, filters map[string]string) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { observeOp("chromem", "query", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", ErrMissingEmbedding)
	}
	if dim := s.collectionDim(collection); len(vector) != dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection expects %d",
			ErrDimensionMismatch, len(vector), dim)
	}

	col := s.db.GetCollection(collection, noEmbedFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	// chromem requires nResults <= document count.
	docCount := col.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	chromemResults, err := col.QueryEmbedding(ctx, vector, k, filters, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results = make([]SearchResult, len(chromemResults))
	for i, r := range chromemResults {
		results[i] = SearchResult{
			ID:        r.ID,
			Content:   r.Content,
			Score:     r.Similarity,
			Embedding: r.Embedding,
			Metadata:  r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("queried chromem collection",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get fetches a single document by ID.
func (s *ChromemStore) Get(ctx context.Context, collection string, id string) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { observeOp("chromem", "get", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Get")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("id", id),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	col := s.db.GetCollection(collection, noEmbedFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "document not found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	span.SetStatus(codes.Ok, "success")
	return &SearchResult{
		ID:        doc.ID,
		Content:   doc.Content,
		Score:     1.0,
		Embedding: doc.Embedding,
		Metadata:  doc.Metadata,
	}, nil
}

// Delete removes documents by their IDs.
func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) (err error) {
	start := time.Now()
	defer func() { observeOp("chromem", "delete", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err = ValidateCollectionName(collection); err != nil {
		return err
	}

	col := s.db.GetCollection(collection, noEmbedFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return ErrCollectionNotFound
	}

	var failures []string
	for _, id := range ids {
		if delErr := col.Delete(ctx, nil, nil, id); delErr != nil {
			span.RecordError(delErr)
			s.logger.Error("failed to delete document",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.Error(delErr),
			)
			failures = append(failures, id)
		}
	}

	if len(failures) > 0 {
		span.SetStatus(codes.Error, "partial deletion failure")
		err = fmt.Errorf("failed to delete %d of %d documents: %v", len(failures), len(ids), failures)
		return err
	}

	DocumentsStored.WithLabelValues(collection).Set(float64(col.Count()))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of documents in a collection.
func (s *ChromemStore) Count(ctx context.Context, collection string) (n int, err error) {
	start := time.Now()
	defer func() { observeOp("chromem", "count", start, err) }()

	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()

	if err = ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	col := s.db.GetCollection(collection, noEmbedFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return 0, ErrCollectionNotFound
	}

	span.SetStatus(codes.Ok, "success")
	return col.Count(), nil
}

// Healthy reports whether the backend is reachable. The embedded store is
// healthy as long as the process owns its database handle.
func (s *ChromemStore) Healthy(ctx context.Context) error {
	if s.db == nil {
		return ErrConnectionFailed
	}
	return nil
}

// Close closes the ChromemStore.
// chromem-go persists on write, no explicit close needed.
func (s *ChromemStore) Close() error {
	s.logger.Debug("chromem store closed")
	return nil
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
