package feedback

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/scoring"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// promote writes a learned record for a satisfied event carrying a
// manual solution. Promotion never fails the feedback operation: any
// degradation ends logged-only with the reason recorded, and the event
// stays in the log for a later re-processing pass.
func (s *Service) promote(ctx context.Context, event *Event) *Receipt {
	record := s.buildRecord(event)

	vectors, err := s.embedder.EmbedDocuments(ctx, []string{record.EmbeddingText()})
	if err != nil || len(vectors) == 0 {
		s.logger.Warn("promotion degraded, embedding unavailable",
			zap.String("feedback_id", event.FeedbackID),
			zap.Error(err))
		s.metrics.RecordDegraded(ctx, ReasonEmbeddingUnavailable)
		return &Receipt{FeedbackID: event.FeedbackID, Outcome: OutcomeLoggedOnly, Reason: ReasonEmbeddingUnavailable}
	}
	vector := vectors[0]

	if !s.config.DisableMerge {
		if target := s.findMergeTarget(ctx, vector, event); target != nil {
			return s.merge(ctx, target, record, vector, event)
		}
	}
	return s.insert(ctx, record, vector, event)
}

// buildRecord shapes the learned record for an event. The solution is
// the agent's correction; confidence folds in the rating, the
// validator's score for the interaction, and how fresh the feedback is.
func (s *Service) buildRecord(event *Event) *knowledge.Record {
	now := s.now().UTC()
	return &knowledge.Record{
		ID:              uuid.New().String(),
		Origin:          knowledge.OriginLearned,
		Question:        event.QueryText,
		Solution:        event.ManualSolution,
		Brand:           event.Brand,
		ProductCategory: event.ProductCategory,
		IssueCategory:   event.IssueCategory,
		Tags:            event.Tags,
		Confidence:      s.scorer.StoredConfidence(event.Rating, event.ValidationScore, event.Timestamp),
		AgentID:         event.AgentID,
		FeedbackID:      event.FeedbackID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// findMergeTarget looks for an existing learned record close enough to
// count as the same solution. The lookup is scoped to the event's
// brand and product category so distinct products never share a
// record. A failed lookup falls through to insert; the upsert will
// surface a store that is actually down.
func (s *Service) findMergeTarget(ctx context.Context, vector []float32, event *Event) *knowledge.Record {
	qc := knowledge.QueryContext{Brand: event.Brand, ProductCategory: event.ProductCategory}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	results, err := s.store.Query(ctx, s.config.Collection, vector, 1, qc.Filters())
	if err != nil {
		s.logger.Warn("merge lookup failed, inserting without merge",
			zap.String("feedback_id", event.FeedbackID),
			zap.Error(err))
		return nil
	}
	if len(results) == 0 || results[0].Score < float32(scoring.NearDuplicateThreshold) {
		return nil
	}
	return knowledge.FromResult(results[0])
}

// merge refreshes an existing learned record in place instead of
// inserting a duplicate. The newest wording and solution win, the
// confidence keeps the higher of old and new, and the usage count
// records one more confirmation of the fix.
//
// The record lock is held across the rewrite and the target is re-read
// under it: the lookup snapshot may predate a concurrent usage write,
// and rewriting from that snapshot would silently undo it.
func (s *Service) merge(ctx context.Context, existing *knowledge.Record, record *knowledge.Record, vector []float32, event *Event) *Receipt {
	unlock := s.records.Lock(existing.ID)
	defer unlock()

	if fresh := s.refetch(ctx, existing.ID); fresh != nil {
		existing = fresh
	}

	existing.Question = record.Question
	existing.Solution = record.Solution
	if record.Confidence > existing.Confidence {
		existing.Confidence = record.Confidence
	}
	existing.UsageCount++
	existing.UpdatedAt = s.now().UTC()
	existing.AgentID = record.AgentID
	existing.FeedbackID = record.FeedbackID
	if existing.Brand == "" {
		existing.Brand = record.Brand
	}
	if existing.ProductCategory == "" {
		existing.ProductCategory = record.ProductCategory
	}
	if existing.IssueCategory == "" {
		existing.IssueCategory = record.IssueCategory
	}
	existing.Tags = mergeTags(existing.Tags, record.Tags)

	if err := s.upsert(ctx, existing, vector); err != nil {
		s.logger.Warn("promotion degraded, merge write failed",
			zap.String("feedback_id", event.FeedbackID),
			zap.String("record_id", existing.ID),
			zap.Error(err))
		s.metrics.RecordDegraded(ctx, ReasonStoreUnavailable)
		return &Receipt{FeedbackID: event.FeedbackID, Outcome: OutcomeLoggedOnly, Reason: ReasonStoreUnavailable}
	}

	s.metrics.RecordPromotion(ctx, true)
	s.logger.Info("merged feedback into existing learned record",
		zap.String("feedback_id", event.FeedbackID),
		zap.String("record_id", existing.ID),
		zap.Float64("confidence", existing.Confidence))
	return &Receipt{FeedbackID: event.FeedbackID, Outcome: OutcomePromoted, RecordID: existing.ID, Merged: true}
}

// insert writes a brand new learned record.
func (s *Service) insert(ctx context.Context, record *knowledge.Record, vector []float32, event *Event) *Receipt {
	if err := s.upsert(ctx, record, vector); err != nil {
		s.logger.Warn("promotion degraded, insert failed",
			zap.String("feedback_id", event.FeedbackID),
			zap.Error(err))
		s.metrics.RecordDegraded(ctx, ReasonStoreUnavailable)
		return &Receipt{FeedbackID: event.FeedbackID, Outcome: OutcomeLoggedOnly, Reason: ReasonStoreUnavailable}
	}

	s.metrics.RecordPromotion(ctx, false)
	s.logger.Info("promoted feedback into learned corpus",
		zap.String("feedback_id", event.FeedbackID),
		zap.String("record_id", record.ID),
		zap.Float64("confidence", record.Confidence))
	return &Receipt{FeedbackID: event.FeedbackID, Outcome: OutcomePromoted, RecordID: record.ID}
}

// refetch reloads a record by ID. Any failure returns nil and the
// caller keeps the copy it already has.
func (s *Service) refetch(ctx context.Context, id string) *knowledge.Record {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	res, err := s.store.Get(ctx, s.config.Collection, id)
	if err != nil || res == nil {
		return nil
	}
	return knowledge.FromResult(*res)
}

func (s *Service) upsert(ctx context.Context, record *knowledge.Record, vector []float32) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	_, err := s.store.Upsert(ctx, s.config.Collection, []vectorstore.Document{record.ToDocument(vector)})
	return err
}

// mergeTags unions two tag lists preserving the existing order.
func mergeTags(existing, incoming []string) []string {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	merged := existing
	for _, t := range incoming {
		if _, ok := seen[t]; !ok {
			merged = append(merged, t)
		}
	}
	return merged
}
