package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// fakeStore is an in-memory store. Upserts are visible to later Gets so
// flushed batches accumulate the way a real store would.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]vectorstore.SearchResult
	getErr    error
	upsertErr error
	upserts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]vectorstore.SearchResult)}
}

func (f *fakeStore) seed(res vectorstore.SearchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[res.ID] = res
}

func (f *fakeStore) Get(ctx context.Context, collection string, id string) (*vectorstore.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	res, ok := f.records[id]
	if !ok {
		return nil, vectorstore.ErrNotFound
	}
	out := res
	return &out, nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, docs []vectorstore.Document) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		f.records[d.ID] = vectorstore.SearchResult{
			ID:        d.ID,
			Content:   d.Content,
			Score:     1.0,
			Embedding: d.Embedding,
			Metadata:  d.Metadata,
		}
		f.upserts++
		ids[i] = d.ID
	}
	return ids, nil
}

func (f *fakeStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	return nil
}

func (f *fakeStore) Query(ctx context.Context, collection string, vector []float32, k int, filters map[string]string) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (f *fakeStore) Delete(ctx context.Context, collection string, ids []string) error {
	return nil
}

func (f *fakeStore) Count(ctx context.Context, collection string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeStore) Healthy(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

var _ vectorstore.Store = (*fakeStore)(nil)

func (f *fakeStore) usageCount(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id].Metadata["usage_count"]
}

func (f *fakeStore) metadata(id, key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id].Metadata[key]
}

func (f *fakeStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func testConfig() Config {
	return Config{ReferenceCollection: "kb_reference", LearnedCollection: "kb_learned"}
}

func seedRecord(store *fakeStore, id string, origin knowledge.Origin, usage int) {
	record := &knowledge.Record{
		ID:              id,
		Origin:          origin,
		Question:        "Earbuds will not pair after firmware update",
		Solution:        "Clear the Bluetooth cache, then re-run setup.",
		Brand:           "SoundWave",
		ProductCategory: "earbuds",
		Confidence:      0.9,
		UsageCount:      usage,
		CreatedAt:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	doc := record.ToDocument([]float32{0.1, 0.2, 0.3})
	store.seed(vectorstore.SearchResult{
		ID:        doc.ID,
		Content:   doc.Content,
		Score:     1.0,
		Embedding: doc.Embedding,
		Metadata:  doc.Metadata,
	})
}

// seedLearned stores a learned record with the given usage count.
func seedLearned(store *fakeStore, id string, usage int) {
	seedRecord(store, id, knowledge.OriginLearned, usage)
}

func usageMsg(origin, recordID string) *nats.Msg {
	return &nats.Msg{
		Subject: "knowledge.usage." + origin + "." + recordID,
		Data: []byte(`{"origin":"` + origin + `","record_id":"` + recordID +
			`","timestamp":"2025-06-15T12:00:00Z"}`),
	}
}

func TestNewConsumer_Validation(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		_, err := NewConsumer(nil, nil, testConfig(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vector store")
	})

	t.Run("invalid reference collection", func(t *testing.T) {
		_, err := NewConsumer(newFakeStore(), nil, Config{ReferenceCollection: "Bad Name!", LearnedCollection: "kb_learned"}, nil)
		require.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
	})

	t.Run("invalid learned collection", func(t *testing.T) {
		_, err := NewConsumer(newFakeStore(), nil, Config{ReferenceCollection: "kb_reference", LearnedCollection: "Bad Name!"}, nil)
		require.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
	})
}

func TestConsumer_CollectFiltersEvents(t *testing.T) {
	store := newFakeStore()
	c, err := NewConsumer(store, nil, testConfig(), zap.NewNop())
	require.NoError(t, err)

	c.collect(&nats.Msg{Subject: "knowledge.usage.learned.x", Data: []byte("{broken")})
	c.collect(usageMsg("mystery", "odd-1"))
	c.collect(usageMsg("learned", ""))
	c.collect(usageMsg("reference", "ref-1"))
	c.collect(usageMsg("learned", "rec-1"))
	c.collect(usageMsg("learned", "rec-1"))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, map[usageKey]int{
		{origin: knowledge.OriginReference, id: "ref-1"}: 1,
		{origin: knowledge.OriginLearned, id: "rec-1"}:   2,
	}, c.pending)
}

func TestConsumer_FlushAppliesIncrements(t *testing.T) {
	store := newFakeStore()
	seedLearned(store, "rec-1", 2)

	c, err := NewConsumer(store, nil, testConfig(), zap.NewNop())
	require.NoError(t, err)

	c.collect(usageMsg("learned", "rec-1"))
	c.collect(usageMsg("learned", "rec-1"))
	c.collect(usageMsg("learned", "rec-1"))
	c.flush()

	assert.Equal(t, 1, store.upsertCount())
	assert.Equal(t, "5", store.usageCount("rec-1"))

	// A second flush with nothing pending writes nothing.
	c.flush()
	assert.Equal(t, 1, store.upsertCount())
}

func TestConsumer_FlushAppliesReferenceIncrements(t *testing.T) {
	store := newFakeStore()
	seedRecord(store, "ref-1", knowledge.OriginReference, 4)
	before := store.metadata("ref-1", "updated_at")

	c, err := NewConsumer(store, nil, testConfig(), zap.NewNop())
	require.NoError(t, err)

	c.collect(usageMsg("reference", "ref-1"))
	c.collect(usageMsg("reference", "ref-1"))
	c.flush()

	// The count moves; everything else on the record stays as seeded.
	assert.Equal(t, "6", store.usageCount("ref-1"))
	assert.Equal(t, before, store.metadata("ref-1", "updated_at"))
	assert.Equal(t, "reference", store.metadata("ref-1", "origin"))
}

func TestConsumer_FlushSkipsUnknownRecord(t *testing.T) {
	store := newFakeStore()
	c, err := NewConsumer(store, nil, testConfig(), zap.NewNop())
	require.NoError(t, err)

	c.collect(usageMsg("learned", "missing"))
	c.flush()

	assert.Zero(t, store.upsertCount())
}

func TestConsumer_FlushSkipsRecordWithoutEmbedding(t *testing.T) {
	store := newFakeStore()
	store.seed(vectorstore.SearchResult{
		ID:       "rec-1",
		Content:  "Question: q\nSolution: s",
		Metadata: map[string]string{"origin": "learned", "usage_count": "1"},
	})

	c, err := NewConsumer(store, nil, testConfig(), zap.NewNop())
	require.NoError(t, err)

	c.collect(usageMsg("learned", "rec-1"))
	c.flush()

	assert.Zero(t, store.upsertCount())
	assert.Equal(t, "1", store.usageCount("rec-1"))
}

func TestConsumer_ApplyWaitsForRecordLock(t *testing.T) {
	store := newFakeStore()
	seedLearned(store, "rec-1", 0)
	locks := knowledge.NewKeyedMutex()

	c, err := NewConsumer(store, locks, testConfig(), zap.NewNop())
	require.NoError(t, err)

	c.collect(usageMsg("learned", "rec-1"))

	// Another writer owns the record; the flush must not rewrite it from
	// a copy read before that writer finished.
	release := locks.Lock("rec-1")

	done := make(chan struct{})
	go func() {
		c.flush()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, store.upsertCount())

	release()
	<-done
	assert.Equal(t, "1", store.usageCount("rec-1"))
}

func TestConsumer_EndToEnd(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connectTestNATS(t, server)

	store := newFakeStore()
	seedLearned(store, "rec-1", 2)
	seedLearned(store, "rec-2", 0)
	seedRecord(store, "ref-1", knowledge.OriginReference, 0)

	cfg := testConfig()
	cfg.FlushInterval = 50 * time.Millisecond
	c, err := NewConsumer(store, nil, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(nc))
	defer c.Close()

	pub, err := NewPublisher(nc, Config{}, zap.NewNop())
	require.NoError(t, err)

	pub.RecordUsage("learned", "rec-1")
	pub.RecordUsage("learned", "rec-1")
	pub.RecordUsage("learned", "rec-2")
	pub.RecordUsage("reference", "ref-1")

	assert.Eventually(t, func() bool {
		return store.usageCount("rec-1") == "4" &&
			store.usageCount("rec-2") == "1" &&
			store.usageCount("ref-1") == "1"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConsumer_CloseFlushesPending(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connectTestNATS(t, server)

	store := newFakeStore()
	seedLearned(store, "rec-1", 0)

	// Flush interval far beyond the test so only Close can apply.
	cfg := testConfig()
	cfg.FlushInterval = time.Minute
	c, err := NewConsumer(store, nil, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(nc))

	pub, err := NewPublisher(nc, Config{}, zap.NewNop())
	require.NoError(t, err)
	pub.RecordUsage("learned", "rec-1")
	pub.RecordUsage("learned", "rec-1")

	key := usageKey{origin: knowledge.OriginLearned, id: "rec-1"}
	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending[key] == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Equal(t, "2", store.usageCount("rec-1"))

	// Close is idempotent.
	require.NoError(t, c.Close())
}

func TestConsumer_StartRequiresConnection(t *testing.T) {
	c, err := NewConsumer(newFakeStore(), nil, testConfig(), nil)
	require.NoError(t, err)
	require.Error(t, c.Start(nil))
}
