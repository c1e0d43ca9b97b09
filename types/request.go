package types

// StoreDocumentRequest is the ingestion input for a single document.
type StoreDocumentRequest struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BatchStoreRequest ingests multiple documents in one call. Embeddings are
// generated with a single batched provider call.
type BatchStoreRequest struct {
	Documents []StoreDocumentRequest `json:"documents"`
}

// SearchRequest is the semantic search input.
type SearchRequest struct {
	Query         string         `json:"query"`
	Limit         int            `json:"limit,omitempty"`
	Filter        map[string]any `json:"filter,omitempty"`
	MinSimilarity float64        `json:"min_similarity,omitempty"`
}

// DeleteDocumentRequest identifies the document to remove.
type DeleteDocumentRequest struct {
	ID string `json:"id"`
}
