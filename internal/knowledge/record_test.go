package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

func TestNewReferenceRecord(t *testing.T) {
	rec, err := NewReferenceRecord("TV won't turn on", "Check the power cable")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, OriginReference, rec.Origin)
	assert.Equal(t, "TV won't turn on", rec.Question)
	assert.Equal(t, "Check the power cable", rec.Solution)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	assert.NoError(t, rec.Validate())
}

func TestNewReferenceRecord_Invalid(t *testing.T) {
	_, err := NewReferenceRecord("  ", "solution")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = NewReferenceRecord("question", "")
	assert.ErrorIs(t, err, ErrEmptySolution)
}

func TestNewLearnedRecord(t *testing.T) {
	rec, err := NewLearnedRecord("TV won't turn on", "Check the power cable", "fb-123", 0.85)
	require.NoError(t, err)

	assert.Equal(t, OriginLearned, rec.Origin)
	assert.Equal(t, "fb-123", rec.FeedbackID)
	assert.InDelta(t, 0.85, rec.Confidence, 0.001)
	assert.NoError(t, rec.Validate())
}

func TestNewLearnedRecord_Invalid(t *testing.T) {
	_, err := NewLearnedRecord("q", "s", "", 0.8)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = NewLearnedRecord("q", "s", "fb-1", 1.5)
	assert.ErrorIs(t, err, ErrInvalidConfidence)
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr error
	}{
		{"empty question", func(r *Record) { r.Question = "  " }, ErrEmptyQuestion},
		{"empty solution", func(r *Record) { r.Solution = "" }, ErrEmptySolution},
		{"bad origin", func(r *Record) { r.Origin = "wiki" }, ErrInvalidOrigin},
		{"non-uuid id", func(r *Record) { r.ID = "not-a-uuid" }, ErrInvalidRecord},
		{"confidence above one", func(r *Record) { r.Confidence = 1.2 }, ErrInvalidConfidence},
		{"confidence below zero", func(r *Record) { r.Confidence = -0.1 }, ErrInvalidConfidence},
		{"negative usage count", func(r *Record) { r.UsageCount = -1 }, ErrInvalidRecord},
		{"learned without feedback id", func(r *Record) {
			r.Origin = OriginLearned
			r.FeedbackID = ""
		}, ErrInvalidRecord},
		{"reference with feedback id", func(r *Record) { r.FeedbackID = "fb-1" }, ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewReferenceRecord("q", "s")
			require.NoError(t, err)
			tt.mutate(rec)
			assert.ErrorIs(t, rec.Validate(), tt.wantErr)
		})
	}
}

func TestRecord_EmbeddingText(t *testing.T) {
	rec, err := NewReferenceRecord("TV won't turn on", "Check the power cable")
	require.NoError(t, err)
	assert.Equal(t, "Question: TV won't turn on\nSolution: Check the power cable", rec.EmbeddingText())
}

func TestRecord_RoundTrip(t *testing.T) {
	rec, err := NewLearnedRecord("Fridge too warm", "Adjust the thermostat", "fb-7", 0.72)
	require.NoError(t, err)
	rec.Brand = "LG"
	rec.ProductCategory = "refrigerator"
	rec.DocType = DocTypeTroubleshooting
	rec.IssueCategory = "cooling"
	rec.Tags = []string{"thermostat", "cooling"}
	rec.UsageCount = 4
	rec.AgentID = "agent-9"

	doc := rec.ToDocument([]float32{0.1, 0.2})
	assert.Equal(t, rec.ID, doc.ID)
	assert.Equal(t, rec.EmbeddingText(), doc.Content)
	assert.Equal(t, "learned", doc.Metadata[metaOrigin])

	got := FromResult(vectorstore.SearchResult{
		ID:       doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
	})

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Origin, got.Origin)
	assert.Equal(t, rec.Question, got.Question)
	assert.Equal(t, rec.Solution, got.Solution)
	assert.Equal(t, rec.Brand, got.Brand)
	assert.Equal(t, rec.ProductCategory, got.ProductCategory)
	assert.Equal(t, rec.DocType, got.DocType)
	assert.Equal(t, rec.IssueCategory, got.IssueCategory)
	assert.Equal(t, rec.Tags, got.Tags)
	assert.InDelta(t, rec.Confidence, got.Confidence, 0.0001)
	assert.Equal(t, rec.UsageCount, got.UsageCount)
	assert.Equal(t, rec.AgentID, got.AgentID)
	assert.Equal(t, rec.FeedbackID, got.FeedbackID)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)
	assert.WithinDuration(t, rec.UpdatedAt, got.UpdatedAt, time.Second)
}

func TestFromResult_MissingConfidence(t *testing.T) {
	got := FromResult(vectorstore.SearchResult{
		ID: "r1",
		Metadata: map[string]string{
			metaOrigin:   "reference",
			metaQuestion: "q",
			metaSolution: "s",
		},
	})

	// Records written before confidence tracking decode as zero.
	assert.Zero(t, got.Confidence)
	assert.Equal(t, OriginReference, got.Origin)
}

func TestFromResult_MalformedFields(t *testing.T) {
	got := FromResult(vectorstore.SearchResult{
		ID: "r1",
		Metadata: map[string]string{
			metaOrigin:     "reference",
			metaQuestion:   "q",
			metaSolution:   "s",
			metaConfidence: "not-a-number",
			metaUsageCount: "NaN",
			metaCreatedAt:  "yesterday",
		},
	})

	assert.Zero(t, got.Confidence)
	assert.Zero(t, got.UsageCount)
	assert.True(t, got.CreatedAt.IsZero())
}

func TestFromResult_ContentFallback(t *testing.T) {
	got := FromResult(vectorstore.SearchResult{
		ID:      "r1",
		Content: "Question: why\nSolution: because",
		Metadata: map[string]string{
			metaOrigin: "reference",
		},
	})

	assert.Equal(t, "why", got.Question)
	assert.Equal(t, "because", got.Solution)
}

func TestRecord_IncrementUsage(t *testing.T) {
	rec, err := NewReferenceRecord("q", "s")
	require.NoError(t, err)
	before := rec.UpdatedAt

	time.Sleep(time.Millisecond)
	rec.IncrementUsage(3)

	assert.Equal(t, 3, rec.UsageCount)
	assert.True(t, rec.UpdatedAt.Equal(before), "usage must not move the content timestamp")

	rec.IncrementUsage(0)
	rec.IncrementUsage(-2)
	assert.Equal(t, 3, rec.UsageCount)
}

func TestQueryContext_Filters(t *testing.T) {
	empty := QueryContext{}
	assert.True(t, empty.Empty())
	assert.Nil(t, empty.Filters())

	qc := QueryContext{Brand: "Samsung", ProductCategory: "TV"}
	require.False(t, qc.Empty())
	filters := qc.Filters()
	assert.Equal(t, "Samsung", filters[metaBrand])
	assert.Equal(t, "TV", filters[metaProductCategory])
	assert.Len(t, filters, 2)
}

func TestContextFromFilters(t *testing.T) {
	qc := ContextFromFilters(map[string]string{
		"brand":            "LG",
		"product_category": "Refrigerator",
		"doc_type":         "faq",
		"issue_category":   "noise",
		"unknown_key":      "ignored",
	})

	assert.Equal(t, QueryContext{
		Brand:           "LG",
		ProductCategory: "Refrigerator",
		DocType:         "faq",
		IssueCategory:   "noise",
	}, qc)

	assert.True(t, ContextFromFilters(nil).Empty())

	// Round-trips back to the same store filters.
	assert.Equal(t, qc.Filters(), ContextFromFilters(qc.Filters()).Filters())
}
