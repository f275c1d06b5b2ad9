package knowledge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// Common errors for knowledge record operations.
var (
	ErrInvalidRecord     = errors.New("invalid knowledge record")
	ErrEmptyQuestion     = errors.New("record question cannot be empty")
	ErrEmptySolution     = errors.New("record solution cannot be empty")
	ErrInvalidOrigin     = errors.New("origin must be 'reference' or 'learned'")
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
)

// Origin identifies which corpus a record belongs to.
type Origin string

const (
	// OriginReference marks curated support documents (SOPs, FAQs, manuals).
	// Reference records are seeded by operators and never mutated by feedback.
	OriginReference Origin = "reference"

	// OriginLearned marks records promoted from resolved support interactions.
	OriginLearned Origin = "learned"
)

// DocType classifies reference documents.
type DocType string

const (
	DocTypeSOP             DocType = "sop"
	DocTypeFAQ             DocType = "faq"
	DocTypeUserManual      DocType = "user_manual"
	DocTypeTroubleshooting DocType = "troubleshooting"
)

// Valid reports whether d is one of the known document types.
func (d DocType) Valid() bool {
	switch d {
	case DocTypeSOP, DocTypeFAQ, DocTypeUserManual, DocTypeTroubleshooting:
		return true
	default:
		return false
	}
}

// Record is a unit of support knowledge in either corpus.
//
// Reference records come from curated documents; learned records are
// promoted from feedback on resolved interactions and additionally carry
// stored confidence, usage counts, and provenance back to the feedback
// event that created them.
type Record struct {
	// ID is the unique record identifier (UUID).
	ID string `json:"id"`

	// Origin is the corpus this record belongs to.
	Origin Origin `json:"origin"`

	// Question is the customer question or issue statement.
	Question string `json:"question"`

	// Solution is the answer or resolution text.
	Solution string `json:"solution"`

	// Brand is the product brand (e.g., "Samsung", "LG").
	Brand string `json:"brand,omitempty"`

	// ProductCategory is the product line (e.g., "TV", "Refrigerator").
	ProductCategory string `json:"product_category,omitempty"`

	// DocType classifies reference documents; empty for learned records.
	DocType DocType `json:"doc_type,omitempty"`

	// IssueCategory groups the kind of issue (e.g., "connectivity", "noise").
	IssueCategory string `json:"issue_category,omitempty"`

	// Tags are free-form labels (e.g., "verified", "expert_validated").
	Tags []string `json:"tags,omitempty"`

	// Confidence is the stored confidence [0.0, 1.0] assigned at promotion.
	// Only meaningful for learned records; 0 when absent.
	Confidence float64 `json:"confidence"`

	// UsageCount tracks how many answers this record has contributed to.
	UsageCount int `json:"usage_count"`

	// AgentID identifies the support agent whose interaction produced a
	// learned record.
	AgentID string `json:"agent_id,omitempty"`

	// FeedbackID links a learned record back to the feedback event that
	// promoted it. Always set for learned records, never for reference.
	FeedbackID string `json:"feedback_id,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReferenceRecord creates a reference record with a generated UUID.
func NewReferenceRecord(question, solution string) (*Record, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if strings.TrimSpace(solution) == "" {
		return nil, ErrEmptySolution
	}

	now := time.Now()
	return &Record{
		ID:        uuid.New().String(),
		Origin:    OriginReference,
		Question:  question,
		Solution:  solution,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewLearnedRecord creates a learned record tied to a feedback event.
func NewLearnedRecord(question, solution, feedbackID string, confidence float64) (*Record, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if strings.TrimSpace(solution) == "" {
		return nil, ErrEmptySolution
	}
	if feedbackID == "" {
		return nil, fmt.Errorf("%w: learned record requires a feedback ID", ErrInvalidRecord)
	}
	if confidence < 0.0 || confidence > 1.0 {
		return nil, ErrInvalidConfidence
	}

	now := time.Now()
	return &Record{
		ID:         uuid.New().String(),
		Origin:     OriginLearned,
		Question:   question,
		Solution:   solution,
		FeedbackID: feedbackID,
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Validate checks if the record has valid fields.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: record ID cannot be empty", ErrInvalidRecord)
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("%w: record ID is not a UUID", ErrInvalidRecord)
	}
	if r.Origin != OriginReference && r.Origin != OriginLearned {
		return ErrInvalidOrigin
	}
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if strings.TrimSpace(r.Solution) == "" {
		return ErrEmptySolution
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return ErrInvalidConfidence
	}
	if r.UsageCount < 0 {
		return fmt.Errorf("%w: usage count cannot be negative", ErrInvalidRecord)
	}
	if r.Origin == OriginLearned && r.FeedbackID == "" {
		return fmt.Errorf("%w: learned record requires a feedback ID", ErrInvalidRecord)
	}
	if r.Origin == OriginReference && r.FeedbackID != "" {
		return fmt.Errorf("%w: reference record cannot carry a feedback ID", ErrInvalidRecord)
	}
	return nil
}

// EmbeddingText is the canonical text embedded for a record. Indexing and
// promotion must use the same concatenation so learned and reference
// records live in one embedding space.
func (r *Record) EmbeddingText() string {
	return "Question: " + r.Question + "\nSolution: " + r.Solution
}

// IncrementUsage bumps the usage count by n. Values of n below one are
// ignored. UpdatedAt stays put: usage is not a content edit, and the
// recency signal tracks content edits only.
func (r *Record) IncrementUsage(n int) {
	if n < 1 {
		return
	}
	r.UsageCount += n
}

// Metadata keys used when a record is stored as a vector document.
const (
	metaOrigin          = "origin"
	metaQuestion        = "question"
	metaSolution        = "solution"
	metaBrand           = "brand"
	metaProductCategory = "product_category"
	metaDocType         = "doc_type"
	metaIssueCategory   = "issue_category"
	metaTags            = "tags"
	metaConfidence      = "confidence"
	metaUsageCount      = "usage_count"
	metaAgentID         = "agent_id"
	metaFeedbackID      = "feedback_id"
	metaCreatedAt       = "created_at"
	metaUpdatedAt       = "updated_at"
)

// ToDocument converts the record to a vector store document. The caller
// supplies the embedding computed from EmbeddingText.
func (r *Record) ToDocument(embedding []float32) vectorstore.Document {
	meta := map[string]string{
		metaOrigin:     string(r.Origin),
		metaQuestion:   r.Question,
		metaSolution:   r.Solution,
		metaConfidence: strconv.FormatFloat(r.Confidence, 'f', 4, 64),
		metaUsageCount: strconv.Itoa(r.UsageCount),
		metaCreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
		metaUpdatedAt:  r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.Brand != "" {
		meta[metaBrand] = r.Brand
	}
	if r.ProductCategory != "" {
		meta[metaProductCategory] = r.ProductCategory
	}
	if r.DocType != "" {
		meta[metaDocType] = string(r.DocType)
	}
	if r.IssueCategory != "" {
		meta[metaIssueCategory] = r.IssueCategory
	}
	if len(r.Tags) > 0 {
		meta[metaTags] = strings.Join(r.Tags, ",")
	}
	if r.AgentID != "" {
		meta[metaAgentID] = r.AgentID
	}
	if r.FeedbackID != "" {
		meta[metaFeedbackID] = r.FeedbackID
	}

	return vectorstore.Document{
		ID:        r.ID,
		Content:   r.EmbeddingText(),
		Embedding: embedding,
		Metadata:  meta,
	}
}

// parseEmbeddingText splits canonical embedding text back into question
// and solution.
func parseEmbeddingText(content string) (question, solution string, ok bool) {
	rest, found := strings.CutPrefix(content, "Question: ")
	if !found {
		return "", "", false
	}
	question, solution, found = strings.Cut(rest, "\nSolution: ")
	if !found {
		return "", "", false
	}
	return question, solution, true
}

// FromResult reconstructs a record from a vector store search result.
// Missing or malformed numeric fields decode as zero values; in particular
// a learned record without stored confidence scores as 0. Question and
// solution fall back to the document content when metadata is incomplete.
func FromResult(res vectorstore.SearchResult) *Record {
	meta := res.Metadata
	r := &Record{
		ID:              res.ID,
		Origin:          Origin(meta[metaOrigin]),
		Question:        meta[metaQuestion],
		Solution:        meta[metaSolution],
		Brand:           meta[metaBrand],
		ProductCategory: meta[metaProductCategory],
		DocType:         DocType(meta[metaDocType]),
		IssueCategory:   meta[metaIssueCategory],
		AgentID:         meta[metaAgentID],
		FeedbackID:      meta[metaFeedbackID],
	}

	if r.Question == "" || r.Solution == "" {
		if q, s, ok := parseEmbeddingText(res.Content); ok {
			if r.Question == "" {
				r.Question = q
			}
			if r.Solution == "" {
				r.Solution = s
			}
		}
	}

	if raw := meta[metaTags]; raw != "" {
		r.Tags = strings.Split(raw, ",")
	}
	if raw := meta[metaConfidence]; raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			r.Confidence = v
		}
	}
	if raw := meta[metaUsageCount]; raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			r.UsageCount = v
		}
	}
	if raw := meta[metaCreatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			r.CreatedAt = t
		}
	}
	if raw := meta[metaUpdatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			r.UpdatedAt = t
		}
	}

	return r
}
