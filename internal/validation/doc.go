// Package validation scores answer quality on completeness, accuracy,
// and relevance before an answer is surfaced or promoted.
//
// Two strategies produce the axis scores: an LLM strategy that asks the
// generation provider for structured JSON, and a heuristic strategy built
// on token overlap and pattern matching that is always available. The
// validator runs the configured primary under a budget and falls back to
// the heuristics on any failure, so validation itself never blocks an
// answer.
package validation
