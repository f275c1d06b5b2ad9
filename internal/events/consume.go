package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// msgBuffer bounds the subscription channel. Events past the buffer are
// dropped by the NATS client; usage counting tolerates that.
const msgBuffer = 256

// usageKey identifies one record in one corpus for the pending batch.
type usageKey struct {
	origin knowledge.Origin
	id     string
}

// Consumer applies usage events to both corpora. A usage write touches
// only the count; everything else on the record rides along unchanged.
//
// Increments are batched per record and flushed on an interval, so a
// burst of answers built from the same record costs one
// read-modify-write instead of one per event.
type Consumer struct {
	store   vectorstore.Store
	locks   *knowledge.KeyedMutex
	config  Config
	logger  *zap.Logger
	metrics *Metrics

	sub  *nats.Subscription
	msgs chan *nats.Msg
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu      sync.Mutex
	pending map[usageKey]int
}

// NewConsumer creates a consumer over both corpus collections. locks is
// the record-identity mutex shared with the promotion path; nil gets a
// private instance.
func NewConsumer(store vectorstore.Store, locks *knowledge.KeyedMutex, cfg Config, logger *zap.Logger) (*Consumer, error) {
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if err := vectorstore.ValidateCollectionName(cfg.ReferenceCollection); err != nil {
		return nil, fmt.Errorf("reference collection: %w", err)
	}
	if err := vectorstore.ValidateCollectionName(cfg.LearnedCollection); err != nil {
		return nil, fmt.Errorf("learned collection: %w", err)
	}
	if locks == nil {
		locks = knowledge.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Consumer{
		store:   store,
		locks:   locks,
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(logger),
		done:    make(chan struct{}),
		pending: make(map[usageKey]int),
	}, nil
}

// Start subscribes to the usage subject tree and applies increments
// until Close.
func (c *Consumer) Start(nc *nats.Conn) error {
	if nc == nil {
		return errors.New("nats connection is required")
	}

	subject := c.config.SubjectPrefix + ".>"
	c.msgs = make(chan *nats.Msg, msgBuffer)
	sub, err := nc.ChanSubscribe(subject, c.msgs)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	c.sub = sub

	c.wg.Add(1)
	go c.run()

	c.logger.Info("usage consumer started",
		zap.String("subject", subject),
		zap.String("reference_collection", c.config.ReferenceCollection),
		zap.String("learned_collection", c.config.LearnedCollection),
		zap.Duration("flush_interval", c.config.FlushInterval))
	return nil
}

func (c *Consumer) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.msgs:
			c.collect(msg)
		case <-ticker.C:
			c.flush()
		case <-c.done:
			// Drain what is already buffered, then flush once more.
			for {
				select {
				case msg := <-c.msgs:
					c.collect(msg)
				default:
					c.flush()
					return
				}
			}
		}
	}
}

// collect folds one event into the pending batch. Events for an origin
// that is not a known corpus are dropped.
func (c *Consumer) collect(msg *nats.Msg) {
	var event UsageEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Warn("unreadable usage event",
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	if event.RecordID == "" {
		return
	}

	c.metrics.RecordObserved(context.Background(), event.Origin)
	origin := knowledge.Origin(event.Origin)
	if origin != knowledge.OriginReference && origin != knowledge.OriginLearned {
		return
	}

	c.mu.Lock()
	c.pending[usageKey{origin: origin, id: event.RecordID}]++
	c.mu.Unlock()
}

// flush applies every pending increment. Failures drop the batch entry;
// the count is best-effort.
func (c *Consumer) flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[usageKey]int)
	c.mu.Unlock()

	for key, count := range batch {
		c.apply(key, count)
	}
}

func (c *Consumer) collection(origin knowledge.Origin) string {
	if origin == knowledge.OriginReference {
		return c.config.ReferenceCollection
	}
	return c.config.LearnedCollection
}

// apply holds the record lock across the read-modify-write so a
// concurrent promotion merge never lands between the read and the
// rewrite.
func (c *Consumer) apply(key usageKey, count int) {
	unlock := c.locks.Lock(key.id)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.StoreTimeout)
	defer cancel()

	collection := c.collection(key.origin)
	res, err := c.store.Get(ctx, collection, key.id)
	if errors.Is(err, vectorstore.ErrNotFound) || errors.Is(err, vectorstore.ErrCollectionNotFound) {
		c.logger.Debug("usage for unknown record", zap.String("record_id", key.id))
		return
	}
	if err != nil {
		c.logger.Warn("usage lookup failed",
			zap.String("record_id", key.id),
			zap.Error(err))
		return
	}
	if len(res.Embedding) == 0 {
		c.logger.Warn("stored record has no embedding, usage not applied",
			zap.String("record_id", key.id))
		return
	}

	record := knowledge.FromResult(*res)
	record.IncrementUsage(count)

	if _, err := c.store.Upsert(ctx, collection, []vectorstore.Document{record.ToDocument(res.Embedding)}); err != nil {
		c.logger.Warn("usage write failed",
			zap.String("record_id", key.id),
			zap.Error(err))
		return
	}

	c.metrics.RecordApplied(ctx, count)
	c.logger.Debug("applied usage increments",
		zap.String("record_id", key.id),
		zap.String("origin", string(key.origin)),
		zap.Int("count", count),
		zap.Int("usage_count", record.UsageCount))
}

// Close stops the consumer after a final drain and flush. Safe to call
// more than once.
func (c *Consumer) Close() error {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("unsubscribe failed", zap.Error(err))
		}
		c.sub = nil
	}
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
	return nil
}
