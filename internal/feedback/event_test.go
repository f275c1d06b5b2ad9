package feedback

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markingScrubber tags every scrubbed text so tests can verify which
// fields went through redaction.
type markingScrubber struct{}

func (markingScrubber) Scrub(_ context.Context, text string) string {
	if text == "" {
		return text
	}
	return "scrubbed:" + text
}

func (markingScrubber) Check(string) bool { return false }

func (markingScrubber) Enabled() bool { return true }

func TestEvent_Validate(t *testing.T) {
	valid := Event{
		QueryText:  "How do I reset my earbuds?",
		AnswerText: "Hold the button for ten seconds.",
		Rating:     4,
	}

	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr string
	}{
		{name: "valid", mutate: func(*Event) {}},
		{name: "rating at lower bound", mutate: func(e *Event) { e.Rating = 1 }},
		{name: "rating at upper bound", mutate: func(e *Event) { e.Rating = 5 }},
		{
			name:    "empty query",
			mutate:  func(e *Event) { e.QueryText = "" },
			wantErr: "query text",
		},
		{
			name:    "whitespace query",
			mutate:  func(e *Event) { e.QueryText = "   " },
			wantErr: "query text",
		},
		{
			name:    "empty answer",
			mutate:  func(e *Event) { e.AnswerText = "" },
			wantErr: "answer text",
		},
		{
			name:    "rating too low",
			mutate:  func(e *Event) { e.Rating = 0 },
			wantErr: "rating",
		},
		{
			name:    "rating too high",
			mutate:  func(e *Event) { e.Rating = 6 },
			wantErr: "rating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := valid
			tt.mutate(&event)

			err := event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidEvent)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvent_Satisfied(t *testing.T) {
	for rating, want := range map[int]bool{1: false, 2: false, 3: false, 4: true, 5: true} {
		e := Event{Rating: rating}
		assert.Equal(t, want, e.Satisfied(), "rating %d", rating)
	}
}

func TestEvent_HasManualSolution(t *testing.T) {
	assert.False(t, (&Event{}).HasManualSolution())
	assert.False(t, (&Event{ManualSolution: "   "}).HasManualSolution())
	assert.True(t, (&Event{ManualSolution: "replace the filter"}).HasManualSolution())
}

func TestEvent_Redacted(t *testing.T) {
	original := Event{
		FeedbackID:     "fb-1",
		QueryText:      "my api key sk-123 leaks",
		AnswerText:     "use the key",
		Comment:        "pasted my password",
		ManualSolution: "rotate the key",
		AgentID:        "agent-7",
		Brand:          "SoundWave",
	}

	got := original.redacted(context.Background(), markingScrubber{})

	assert.Equal(t, "scrubbed:my api key sk-123 leaks", got.QueryText)
	assert.Equal(t, "scrubbed:use the key", got.AnswerText)
	assert.Equal(t, "scrubbed:pasted my password", got.Comment)
	assert.Equal(t, "scrubbed:rotate the key", got.ManualSolution)

	// Structured fields pass through untouched.
	assert.Equal(t, "agent-7", got.AgentID)
	assert.Equal(t, "SoundWave", got.Brand)

	// The caller's event is not mutated.
	assert.False(t, strings.HasPrefix(original.QueryText, "scrubbed:"))
}
