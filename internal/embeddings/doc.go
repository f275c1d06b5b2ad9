// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX), TEI (Text Embeddings Inference over HTTP),
// and OpenAI-compatible API providers. Factory pattern enables provider
// selection at runtime with automatic dimension detection for common models.
//
// All provider failures surface as ErrEmbeddingUnavailable so callers can
// distinguish "the embedding backend is down" from their own input errors.
package embeddings
