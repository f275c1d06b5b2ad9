// Package search merges knowledge from the reference and learned corpora
// into a single ranked candidate list.
//
// The coordinator embeds the query once, fans out to both vector stores
// concurrently under per-store timeouts, scores every hit, collapses
// near-duplicates, and ranks with learned-priority semantics. A store
// failure degrades that corpus to an empty contribution instead of
// failing the search; only an embedding failure is fatal.
package search
