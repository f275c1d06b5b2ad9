// Package engine wires retrieval, answer assembly, validation, and the
// feedback learning loop into the operations the HTTP API exposes.
//
// The engine stays thin: each operation delegates to the owning subsystem
// and only adds the cross-cutting pieces that need the full picture, such
// as answer confidence, degradation reporting, and the no-knowledge
// fallback. A query never surfaces a raw failure to the caller unless the
// embedding provider itself is down; anything less returns a usable
// response with degradation flags set.
package engine
