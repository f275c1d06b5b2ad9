package vectorstore

// Document represents a document to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the text the embedding was computed from. Kept alongside
	// the vector so results are self-contained.
	Content string

	// Embedding is the precomputed vector. Required; stores validate its
	// dimension against the collection before writing.
	Embedding []float32

	// Metadata contains key-value pairs for filtering and reconstruction.
	Metadata map[string]string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text content.
	Content string

	// Score is the normalized similarity in [0,1] (higher = more similar).
	Score float32

	// Embedding is the stored vector when the backend returns it; may be
	// nil for backends that cannot return vectors cheaply.
	Embedding []float32

	// Metadata contains the document metadata.
	Metadata map[string]string
}
