package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/supportd/internal/redact"
)

// ErrInvalidEvent indicates a feedback event that fails validation.
var ErrInvalidEvent = errors.New("invalid feedback event")

// Rating bounds and the satisfaction cut on the 1-5 scale.
const (
	minRating       = 1
	maxRating       = 5
	satisfiedRating = 4
)

// Outcome is the terminal state of a processed feedback event.
type Outcome string

const (
	// OutcomePromoted means a learned record was written or merged.
	OutcomePromoted Outcome = "promoted"

	// OutcomeLoggedOnly means the event was retained in the log without
	// touching the learned corpus.
	OutcomeLoggedOnly Outcome = "logged_only"
)

// Reasons recorded on logged-only receipts.
const (
	// ReasonUnsatisfied marks events whose rating fell below the
	// satisfaction cut.
	ReasonUnsatisfied = "unsatisfied"

	// ReasonNoManualSolution marks satisfied events with nothing new to
	// learn.
	ReasonNoManualSolution = "no_manual_solution"

	// ReasonEmbeddingUnavailable marks promotions degraded by the
	// embedding provider. The event stays replayable from the log.
	ReasonEmbeddingUnavailable = "embedding_unavailable"

	// ReasonStoreUnavailable marks promotions degraded by the learned
	// corpus store.
	ReasonStoreUnavailable = "store_unavailable"
)

// Event is one piece of human feedback on a served answer.
//
// FeedbackID may be supplied by the client so a retried submission is
// recognized instead of processed twice; the service assigns one when
// absent.
type Event struct {
	FeedbackID       string    `json:"feedback_id"`
	Timestamp        time.Time `json:"timestamp"`
	QueryText        string    `json:"query_text"`
	AnswerText       string    `json:"answer_text"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment,omitempty"`
	ManualSolution   string    `json:"manual_solution,omitempty"`
	AgentID          string    `json:"agent_id,omitempty"`
	Brand            string    `json:"brand,omitempty"`
	ProductCategory  string    `json:"product_category,omitempty"`
	IssueCategory    string    `json:"issue_category,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	ValidationScore  float64   `json:"validation_score,omitempty"`
	ResolutionMethod string    `json:"resolution_method,omitempty"`
}

// Validate checks the fields the learning loop depends on.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.QueryText) == "" {
		return fmt.Errorf("%w: query text is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.AnswerText) == "" {
		return fmt.Errorf("%w: answer text is required", ErrInvalidEvent)
	}
	if e.Rating < minRating || e.Rating > maxRating {
		return fmt.Errorf("%w: rating %d outside %d..%d", ErrInvalidEvent, e.Rating, minRating, maxRating)
	}
	return nil
}

// Satisfied reports whether the customer accepted the resolution.
func (e *Event) Satisfied() bool {
	return e.Rating >= satisfiedRating
}

// HasManualSolution reports whether an agent attached a correction.
func (e *Event) HasManualSolution() bool {
	return strings.TrimSpace(e.ManualSolution) != ""
}

// redacted returns a copy with every free-text field scrubbed.
func (e Event) redacted(ctx context.Context, scrubber redact.Scrubber) Event {
	e.QueryText = scrubber.Scrub(ctx, e.QueryText)
	e.AnswerText = scrubber.Scrub(ctx, e.AnswerText)
	e.Comment = scrubber.Scrub(ctx, e.Comment)
	e.ManualSolution = scrubber.Scrub(ctx, e.ManualSolution)
	return e
}

// Receipt is the terminal result for one feedback event.
type Receipt struct {
	FeedbackID string  `json:"feedback_id"`
	Outcome    Outcome `json:"outcome"`

	// RecordID is the learned record written or merged into; empty for
	// logged-only outcomes.
	RecordID string `json:"record_id,omitempty"`

	// Merged reports that the promotion refreshed an existing record
	// instead of inserting a new one.
	Merged bool `json:"merged,omitempty"`

	// Reason explains a logged-only outcome.
	Reason string `json:"reason,omitempty"`
}
