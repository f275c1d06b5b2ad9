package search

import (
	"sort"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/scoring"
)

// rankCandidates orders candidates in place. Learned candidates at or
// above the priority floor rank ahead of every reference candidate;
// everything else follows by final score descending.
func rankCandidates(cands []knowledge.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return ranksBefore(&cands[i], &cands[j])
	})
}

// ranksBefore reports whether a orders ahead of b.
//
// Ties at equal final score break learned-first, then higher usage count,
// then more recent creation.
func ranksBefore(a, b *knowledge.Candidate) bool {
	ap, bp := hasPriority(a), hasPriority(b)
	if ap != bp {
		return ap
	}
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	aLearned := a.Record.Origin == knowledge.OriginLearned
	bLearned := b.Record.Origin == knowledge.OriginLearned
	if aLearned != bLearned {
		return aLearned
	}
	if a.Record.UsageCount != b.Record.UsageCount {
		return a.Record.UsageCount > b.Record.UsageCount
	}
	return a.Record.CreatedAt.After(b.Record.CreatedAt)
}

// hasPriority reports whether the candidate sits in the learned priority
// band that outranks all reference results.
func hasPriority(c *knowledge.Candidate) bool {
	return c.Record.Origin == knowledge.OriginLearned && c.FinalScore >= scoring.LearnedPriorityFloor
}

// clampLimit resolves the effective result count: def when the caller
// passes limit <= 0, max as the hard cap.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
