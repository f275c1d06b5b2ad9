package knowledge

// Candidate is a record returned from retrieval together with its scores.
type Candidate struct {
	// Record is the retrieved knowledge record.
	Record *Record

	// RawSimilarity is the normalized cosine similarity [0,1] between the
	// query vector and the record's embedding, as reported by the store.
	RawSimilarity float64

	// FinalScore is the ranking score after origin-specific weighting.
	// For reference records this equals RawSimilarity.
	FinalScore float64

	// Embedding is the record's stored vector when the store returns it.
	// Used for near-duplicate collapse; may be nil.
	Embedding []float32
}

// QueryContext carries the metadata filters parsed from a query request.
// Zero-value fields mean "no filter".
type QueryContext struct {
	Brand           string `json:"brand,omitempty"`
	ProductCategory string `json:"product_category,omitempty"`
	DocType         string `json:"doc_type,omitempty"`
	IssueCategory   string `json:"issue_category,omitempty"`
}

// Filters renders the context as store-level metadata filters. Returns nil
// when no filter is set so stores can skip the filter path entirely.
func (qc QueryContext) Filters() map[string]string {
	f := make(map[string]string, 4)
	if qc.Brand != "" {
		f[metaBrand] = qc.Brand
	}
	if qc.ProductCategory != "" {
		f[metaProductCategory] = qc.ProductCategory
	}
	if qc.DocType != "" {
		f[metaDocType] = qc.DocType
	}
	if qc.IssueCategory != "" {
		f[metaIssueCategory] = qc.IssueCategory
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// Empty reports whether no filter is set.
func (qc QueryContext) Empty() bool {
	return qc.Brand == "" && qc.ProductCategory == "" && qc.DocType == "" && qc.IssueCategory == ""
}

// ContextFromFilters parses request-level filters into a QueryContext.
// Unknown keys are ignored so clients can send extra fields without
// breaking retrieval.
func ContextFromFilters(filters map[string]string) QueryContext {
	return QueryContext{
		Brand:           filters[metaBrand],
		ProductCategory: filters[metaProductCategory],
		DocType:         filters[metaDocType],
		IssueCategory:   filters[metaIssueCategory],
	}
}
