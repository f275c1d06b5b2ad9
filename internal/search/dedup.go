package search

import (
	"math"
	"strings"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/scoring"
)

// collapseNearDuplicates removes the weaker member of every near-duplicate
// pair. The higher final score survives; at equal scores the learned
// candidate survives so an agent-confirmed solution shadows its reference
// twin.
func collapseNearDuplicates(cands []knowledge.Candidate) []knowledge.Candidate {
	if len(cands) < 2 {
		return cands
	}

	dropped := make([]bool, len(cands))
	for i := 0; i < len(cands); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if dropped[j] {
				continue
			}
			if !nearDuplicate(&cands[i], &cands[j]) {
				continue
			}
			if survives(&cands[i], &cands[j]) {
				dropped[j] = true
			} else {
				dropped[i] = true
				break
			}
		}
	}

	kept := cands[:0]
	for i := range cands {
		if !dropped[i] {
			kept = append(kept, cands[i])
		}
	}
	return kept
}

// nearDuplicate reports whether two candidates carry the same knowledge.
// When both embeddings are present the test is cosine similarity; when
// either is missing it falls back to normalized content equality.
func nearDuplicate(a, b *knowledge.Candidate) bool {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		return cosineSimilarity(a.Embedding, b.Embedding) >= scoring.NearDuplicateThreshold
	}
	return normalizedContent(a.Record) == normalizedContent(b.Record)
}

// survives reports whether a wins the collapse against near-duplicate b.
func survives(a, b *knowledge.Candidate) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	aLearned := a.Record.Origin == knowledge.OriginLearned
	bLearned := b.Record.Origin == knowledge.OriginLearned
	if aLearned != bLearned {
		return aLearned
	}
	return true
}

// normalizedContent folds case and whitespace so trivially reformatted
// copies of the same answer compare equal.
func normalizedContent(r *knowledge.Record) string {
	return strings.Join(strings.Fields(strings.ToLower(r.Question+" "+r.Solution)), " ")
}

// cosineSimilarity computes cos(θ) between two vectors. Returns 0 for
// empty, mismatched, or zero-magnitude inputs.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
