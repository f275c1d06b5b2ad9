package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("supportd.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	// VectorSize is the dimensionality of embeddings.
	// MUST match the embedding provider's output dimension.
	// Default: 384 (BAAI/bge-small-en-v1.5)
	VectorSize uint64

	// Distance is the similarity metric for vector search.
	// Options: Cosine (default), Euclid, Dot
	Distance qdrant.Distance

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry. Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of consecutive failures before
	// the circuit opens. Default: 5
	CircuitBreakerThreshold int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability,
// false for invalid config, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
//
// gRPC (port 6334) bypasses Qdrant's HTTP layer and its 256kB payload
// limit, and the binary protobuf encoding handles large batches without
// JSON overhead. Suited to deployments where the corpora outgrow the
// embedded store.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	// dimensions tracks the vector size per known collection.
	dimensions sync.Map

	// circuitBreaker tracks failures for the circuit breaker pattern.
	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a new QdrantStore and verifies connectivity.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext, enable TLS for production",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Healthy(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Uint64("vector_size", config.VectorSize),
	)

	return store, nil
}

// Healthy reports whether the Qdrant backend is reachable.
func (s *QdrantStore) Healthy(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Healthy")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		// Allow retry after 30 seconds
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// EnsureCollection creates the collection if it does not exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", vectorSize),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if vectorSize == 0 {
		vectorSize = int(s.config.VectorSize)
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", name, err)
	}

	if !exists {
		err = s.retryOperation(ctx, "create_collection", func() error {
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(vectorSize),
					Distance: s.config.Distance,
				}),
			})
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
		s.logger.Info("created qdrant collection",
			zap.String("collection", name),
			zap.Int("vector_size", vectorSize),
		)
	}

	s.dimensions.Store(name, vectorSize)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// collectionDim returns the configured dimension for a collection.
func (s *QdrantStore) collectionDim(name string) int {
	if v, ok := s.dimensions.Load(name); ok {
		return v.(int)
	}
	return int(s.config.VectorSize)
}

// Upsert inserts or replaces documents by ID.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document) (ids []string, err error) {
	start := time.Now()
	defer func() { observeOp("qdrant", "upsert", start, err) }()

	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
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

	points := make([]*qdrant.PointStruct, len(docs))
	ids = make([]string, len(docs))

	for i, doc := range docs {
		if doc.ID == "" {
			err = fmt.Errorf("document at index %d has no ID", i)
			span.RecordError(err)
			return nil, err
		}
		ids[i] = doc.ID

		payload := make(map[string]*qdrant.Value, len(doc.Metadata)+2)
		payload["content"] = qdrant.NewValueString(doc.Content)
		payload["id"] = qdrant.NewValueString(doc.ID)
		for k, v := range doc.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: payload,
		}
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, upErr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return upErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int("points_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// resultFromPayload converts a Qdrant payload into a SearchResult.
func resultFromPayload(id string, score float32, vector []float32, payload map[string]*qdrant.Value) SearchResult {
	result := SearchResult{
		ID:        id,
		Score:     score,
		Embedding: vector,
	}
	if payload == nil {
		return result
	}

	result.Metadata = make(map[string]string, len(payload))
	for k, v := range payload {
		sv, ok := v.Kind.(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		switch k {
		case "content":
			result.Content = sv.StringValue
		case "id":
			result.ID = sv.StringValue
		default:
			result.Metadata[k] = sv.StringValue
		}
	}
	return result
}

// Query performs similarity search with a precomputed query vector.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, k int, filters map[string]string) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { observeOp("qdrant", "query", start, err) }()

	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
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

	var filter *qdrant.Filter
	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for key, value := range filters {
			conditions = append(conditions, qdrant.NewMatch(key, value))
		}
		filter = &qdrant.Filter{Must: conditions}
	}

	var scored []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "query", func() error {
		res, qErr := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
			Filter:         filter,
		})
		if qErr != nil {
			return qErr
		}
		scored = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results = make([]SearchResult, len(scored))
	for i, point := range scored {
		var emb []float32
		if vo := point.GetVectors().GetVector(); vo != nil {
			emb = vo.GetData()
		}
		var id string
		if pid := point.GetId(); pid != nil {
			id = pid.GetUuid()
		}
		results[i] = resultFromPayload(id, point.GetScore(), emb, point.GetPayload())
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Get fetches a single document by ID.
func (s *QdrantStore) Get(ctx context.Context, collection string, id string) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { observeOp("qdrant", "get", start, err) }()

	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Get")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("id", id),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	var points []*qdrant.RetrievedPoint
	err = s.retryOperation(ctx, "get", func() error {
		got, gErr := s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collection,
			Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if gErr != nil {
			return gErr
		}
		points = got
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("getting point %s: %w", id, err)
	}
	if len(points) == 0 {
		span.SetStatus(codes.Error, "document not found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	point := points[0]
	var emb []float32
	if vo := point.GetVectors().GetVector(); vo != nil {
		emb = vo.GetData()
	}
	result := resultFromPayload(id, 1.0, emb, point.GetPayload())

	span.SetStatus(codes.Ok, "success")
	return &result, nil
}

// Delete removes documents by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) (err error) {
	start := time.Now()
	defer func() { observeOp("qdrant", "delete", start, err) }()

	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Delete")
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

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	err = s.retryOperation(ctx, "delete", func() error {
		_, dErr := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points:         qdrant.NewPointsSelector(pointIDs...),
		})
		return dErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points from collection %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of documents in a collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (n int, err error) {
	start := time.Now()
	defer func() { observeOp("qdrant", "count", start, err) }()

	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Count")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if err = ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	var count uint64
	err = s.retryOperation(ctx, "count", func() error {
		c, cErr := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Exact:          qdrant.PtrOf(true),
		})
		if cErr != nil {
			st, ok := status.FromError(cErr)
			if ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return cErr
		}
		count = c
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int("point_count", int(count)))
	span.SetStatus(codes.Ok, "success")
	return int(count), nil
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)
