// Package scoring computes ranking scores for retrieved knowledge and
// stored confidence for promoted records.
//
// The formulas are fixed product decisions, not configuration:
//
//   - learned candidates blend raw similarity, stored confidence, and an
//     exponential recency decay (half-life 180 days)
//   - reference candidates rank on raw similarity alone
//   - promotion-time confidence blends the agent rating, the validator's
//     overall score, and a linear recency bonus over one year
//   - answer confidence blends corpus composition with the validator's
//     overall score
//
// All outputs are clamped to [0, 1].
package scoring

import (
	"math"
	"time"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

const (
	// Learned candidate ranking weights.
	similarityWeight = 0.5
	confidenceWeight = 0.3
	recencyWeight    = 0.2

	// Promotion-time confidence weights.
	ratingWeight     = 0.5
	validationWeight = 0.3
	freshnessWeight  = 0.2

	// recencyHalfLifeDays is the decay half-life for learned candidates:
	// a record untouched for 180 days contributes half its recency weight.
	recencyHalfLifeDays = 180.0

	// freshnessWindowDays is the linear decay window for the promotion
	// recency bonus. Feedback older than this earns no bonus.
	freshnessWindowDays = 365.0

	// maxRating is the top of the feedback rating scale.
	maxRating = 5.0

	// Answer confidence indicators.
	answerBase             = 0.5
	learnedPresenceBonus   = 0.3
	learnedConfidenceBonus = 0.2
	referenceDocBonus      = 0.1
	referenceBonusCap      = 0.3
)

// LearnedPriorityFloor is the final score at which a learned candidate
// outranks every reference candidate regardless of reference similarity.
const LearnedPriorityFloor = 0.5

// NearDuplicateThreshold is the cosine similarity at or above which two
// pieces of knowledge count as the same solution, both for search result
// collapse and for merge-on-promotion.
const NearDuplicateThreshold = 0.95

// Scorer computes scores against an injectable clock.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a Scorer using the wall clock.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// NewScorerAt creates a Scorer with a fixed clock for tests.
func NewScorerAt(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// LearnedScore ranks a learned candidate.
//
// Age is measured from updatedAt, falling back to createdAt. A record with
// neither timestamp earns no recency credit. Missing stored confidence
// contributes 0, it does not disqualify the record.
func (s *Scorer) LearnedScore(rawSimilarity, storedConfidence float64, updatedAt, createdAt time.Time) float64 {
	ts := updatedAt
	if ts.IsZero() {
		ts = createdAt
	}

	score := similarityWeight*clamp01(rawSimilarity) +
		confidenceWeight*clamp01(storedConfidence) +
		recencyWeight*s.recencyFactor(ts)
	return clamp01(score)
}

// ReferenceScore ranks a reference candidate on similarity alone.
func (s *Scorer) ReferenceScore(rawSimilarity float64) float64 {
	return clamp01(rawSimilarity)
}

// ScoreCandidate computes and assigns FinalScore for a candidate based on
// its origin.
func (s *Scorer) ScoreCandidate(c *knowledge.Candidate) float64 {
	if c.Record.Origin == knowledge.OriginLearned {
		c.FinalScore = s.LearnedScore(c.RawSimilarity, c.Record.Confidence, c.Record.UpdatedAt, c.Record.CreatedAt)
	} else {
		c.FinalScore = s.ReferenceScore(c.RawSimilarity)
	}
	return c.FinalScore
}

// StoredConfidence computes the confidence persisted with a promoted record.
//
// rating is the agent's 1-5 rating, validationScore the validator's overall
// score for the answered interaction (0 when unavailable), and feedbackAt
// the feedback event timestamp. Immediate promotion earns the full
// freshness bonus, decaying linearly to zero over a year.
func (s *Scorer) StoredConfidence(rating int, validationScore float64, feedbackAt time.Time) float64 {
	score := ratingWeight*(float64(rating)/maxRating) +
		validationWeight*clamp01(validationScore) +
		freshnessWeight*s.freshnessBonus(feedbackAt)
	return clamp01(score)
}

// AnswerConfidence estimates how much to trust an assembled answer from
// the evidence behind it.
//
// The score starts at a neutral base and earns bonuses for learned
// solutions in the candidate set (presence, plus the best stored
// confidence among them) and for corroborating reference documents. When
// the validator produced an overall score, the result is averaged with it
// so a weak validation pulls strong evidence back down. No candidates
// means no confidence at all.
func AnswerConfidence(candidates []knowledge.Candidate, validationScore float64) float64 {
	if len(candidates) == 0 {
		return 0
	}

	score := answerBase
	hasLearned := false
	maxLearned := 0.0
	referenceCount := 0
	for _, c := range candidates {
		if c.Record.Origin == knowledge.OriginLearned {
			hasLearned = true
			if c.Record.Confidence > maxLearned {
				maxLearned = c.Record.Confidence
			}
		} else {
			referenceCount++
		}
	}

	if hasLearned {
		score += learnedPresenceBonus
	}
	score += learnedConfidenceBonus * clamp01(maxLearned)
	score += math.Min(float64(referenceCount)*referenceDocBonus, referenceBonusCap)

	if validationScore > 0 {
		score = (score + clamp01(validationScore)) / 2
	}
	return clamp01(score)
}

// recencyFactor is the exponential decay 0.5^(ageDays/180).
func (s *Scorer) recencyFactor(ts time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	ageDays := s.ageDays(ts)
	return math.Pow(0.5, ageDays/recencyHalfLifeDays)
}

// freshnessBonus is the linear decay max(0, 1 - ageDays/365).
func (s *Scorer) freshnessBonus(ts time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	bonus := 1 - s.ageDays(ts)/freshnessWindowDays
	if bonus < 0 {
		return 0
	}
	return bonus
}

// ageDays returns the age of ts in days, never negative.
func (s *Scorer) ageDays(ts time.Time) float64 {
	age := s.now().Sub(ts).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
