// Package feedback ingests human feedback on served answers and grows
// the learned corpus from it.
//
// Every event lands in an append-only JSONL log before any other
// processing runs; the log is the durability guarantee for the whole
// learning loop. Satisfied events carrying an agent's manual solution
// are promoted into the learned corpus with a confidence computed at
// promotion time, merging into an existing near-duplicate record
// rather than accumulating copies. Everything else is retained as
// logged-only signal for operators.
package feedback
