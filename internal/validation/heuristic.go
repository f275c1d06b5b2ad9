package validation

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

// Troubleshooting answers tend to enumerate steps and name concrete
// controls. Matching both patterns is weak evidence of a usable answer,
// matching neither is not disqualifying, so accuracy moves between two
// fixed levels rather than a continuous score.
var (
	stepsPattern     = regexp.MustCompile(`\d+\.|step \d+|first|second|then|next|finally`)
	specificsPattern = regexp.MustCompile(`settings|menu|button|error|code|temperature|mode|reset|power`)
)

const (
	accuracyWithEvidence = 0.7
	accuracyBaseline     = 0.5

	relevanceMentioned   = 0.8
	relevanceUnmentioned = 0.5
	relevanceNoContext   = 0.3
)

// heuristicScores computes the three axis scores without an LLM.
func heuristicScores(query, answer string, qc knowledge.QueryContext) axisScores {
	answerLower := strings.ToLower(answer)

	return axisScores{
		completeness: completenessScore(query, answerLower),
		accuracy:     accuracyScore(answerLower),
		relevance:    relevanceScore(answerLower, qc),
	}
}

// completenessScore measures how much of the question the answer echoes.
// Overlap is the fraction of unique meaningful query tokens appearing in
// the answer, doubled and capped so that covering half the question's
// vocabulary already counts as complete.
func completenessScore(query, answerLower string) float64 {
	queryTokens := meaningfulTokens(query)
	if len(queryTokens) == 0 {
		return 0
	}

	answerWords := wordSet(answerLower)
	matched := 0
	for token := range queryTokens {
		if answerWords[token] {
			matched++
		}
	}

	overlap := float64(matched) / float64(len(queryTokens))
	if score := 2 * overlap; score < 1.0 {
		return score
	}
	return 1.0
}

// accuracyScore looks for structural evidence of a real fix: enumerated
// steps plus concrete device vocabulary.
func accuracyScore(answerLower string) float64 {
	if stepsPattern.MatchString(answerLower) && specificsPattern.MatchString(answerLower) {
		return accuracyWithEvidence
	}
	return accuracyBaseline
}

// relevanceScore checks whether the answer names the product it is
// supposed to be about.
func relevanceScore(answerLower string, qc knowledge.QueryContext) float64 {
	brand := strings.ToLower(qc.Brand)
	category := strings.ToLower(qc.ProductCategory)

	if brand == "" && category == "" {
		return relevanceNoContext
	}
	if (brand != "" && strings.Contains(answerLower, brand)) ||
		(category != "" && strings.Contains(answerLower, category)) {
		return relevanceMentioned
	}
	return relevanceUnmentioned
}

// meaningfulTokens returns the unique lowercased query tokens longer than
// two characters with stopwords removed.
func meaningfulTokens(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, token := range splitWords(strings.ToLower(text)) {
		if len(token) > 2 && !stopwords[token] {
			tokens[token] = true
		}
	}
	return tokens
}

// wordSet returns every lowercased word token. The answer side is not
// stopword-filtered; only the query side decides which tokens matter.
func wordSet(textLower string) map[string]bool {
	words := make(map[string]bool)
	for _, token := range splitWords(textLower) {
		words[token] = true
	}
	return words
}

// splitWords tokenizes on any non-alphanumeric rune.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

// stopwords are common English words carrying no signal for overlap.
var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"from": true, "was": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "you": true, "your": true, "they": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "not": true, "all": true, "any": true, "its": true,
	"out": true, "get": true, "got": true, "just": true, "than": true,
	"then": true, "now": true,
}
