package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

func rankCandidate(id string, origin knowledge.Origin, score float64, usage int, created time.Time) knowledge.Candidate {
	return knowledge.Candidate{
		Record: &knowledge.Record{
			ID:         id,
			Origin:     origin,
			UsageCount: usage,
			CreatedAt:  created,
		},
		FinalScore: score,
	}
}

func rankedIDs(cands []knowledge.Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.Record.ID
	}
	return ids
}

func TestRankCandidates_PriorityFloor(t *testing.T) {
	cands := []knowledge.Candidate{
		rankCandidate("ref-high", knowledge.OriginReference, 0.95, 0, searchTestNow),
		rankCandidate("lrn-floor", knowledge.OriginLearned, 0.50, 0, searchTestNow),
		rankCandidate("lrn-strong", knowledge.OriginLearned, 0.80, 0, searchTestNow),
	}

	rankCandidates(cands)

	// Learned at or above the floor outranks even a stronger reference
	// hit; within the band order is by final score.
	assert.Equal(t, []string{"lrn-strong", "lrn-floor", "ref-high"}, rankedIDs(cands))
}

func TestRankCandidates_LearnedBelowFloorMixesByScore(t *testing.T) {
	cands := []knowledge.Candidate{
		rankCandidate("lrn-weak", knowledge.OriginLearned, 0.45, 0, searchTestNow),
		rankCandidate("ref-mid", knowledge.OriginReference, 0.60, 0, searchTestNow),
		rankCandidate("ref-low", knowledge.OriginReference, 0.30, 0, searchTestNow),
	}

	rankCandidates(cands)

	assert.Equal(t, []string{"ref-mid", "lrn-weak", "ref-low"}, rankedIDs(cands))
}

func TestRankCandidates_TieBreaks(t *testing.T) {
	t.Run("learned before reference", func(t *testing.T) {
		cands := []knowledge.Candidate{
			rankCandidate("ref", knowledge.OriginReference, 0.40, 9, searchTestNow),
			rankCandidate("lrn", knowledge.OriginLearned, 0.40, 0, searchTestNow),
		}

		rankCandidates(cands)

		assert.Equal(t, []string{"lrn", "ref"}, rankedIDs(cands))
	})

	t.Run("higher usage count", func(t *testing.T) {
		cands := []knowledge.Candidate{
			rankCandidate("cold", knowledge.OriginLearned, 0.70, 2, searchTestNow),
			rankCandidate("hot", knowledge.OriginLearned, 0.70, 14, searchTestNow),
		}

		rankCandidates(cands)

		assert.Equal(t, []string{"hot", "cold"}, rankedIDs(cands))
	})

	t.Run("more recent creation", func(t *testing.T) {
		cands := []knowledge.Candidate{
			rankCandidate("old", knowledge.OriginReference, 0.70, 3, searchTestNow.AddDate(0, -6, 0)),
			rankCandidate("new", knowledge.OriginReference, 0.70, 3, searchTestNow),
		}

		rankCandidates(cands)

		assert.Equal(t, []string{"new", "old"}, rankedIDs(cands))
	})
}

func TestHasPriority(t *testing.T) {
	tests := []struct {
		name   string
		origin knowledge.Origin
		score  float64
		want   bool
	}{
		{name: "learned at floor", origin: knowledge.OriginLearned, score: 0.50, want: true},
		{name: "learned above floor", origin: knowledge.OriginLearned, score: 0.51, want: true},
		{name: "learned below floor", origin: knowledge.OriginLearned, score: 0.499, want: false},
		{name: "reference never", origin: knowledge.OriginReference, score: 0.99, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := rankCandidate("c", tt.origin, tt.score, 0, searchTestNow)
			assert.Equal(t, tt.want, hasPriority(&c))
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: 5},
		{name: "negative uses default", limit: -3, want: 5},
		{name: "in range passes through", limit: 7, want: 7},
		{name: "above cap clamps", limit: 50, want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.limit, 5, 20))
		})
	}
}
