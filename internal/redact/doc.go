// Package redact scrubs credentials out of feedback free text before
// it is logged or promoted into the learned corpus.
//
// Detection runs on the Gitleaks rule set. Matches are replaced with
// [REDACTED:rule-id:preview] markers that keep enough context for
// embeddings and operator review without retaining the secret itself.
// An optional TOML allowlist excludes known-safe patterns such as
// documentation placeholders and demo keys.
package redact
