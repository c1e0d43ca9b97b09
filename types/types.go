package types

// Document represents a knowledge base document persisted in the document store.
// EmbeddingID is empty between document creation and a successful vector write;
// a document is searchable only once EmbeddingID is set.
type Document struct {
	ID          string         `json:"id" bson:"_id,omitempty"`
	Title       string         `json:"title" bson:"title"`
	Content     string         `json:"content" bson:"content"`
	Metadata    map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	EmbeddingID string         `json:"embedding_id,omitempty" bson:"embedding_id,omitempty"`
	CreatedAt   int64          `json:"created_at" bson:"created_at"`
	UpdatedAt   int64          `json:"updated_at" bson:"updated_at"`
}

// Searchable reports whether the document has a finalized embedding.
func (d *Document) Searchable() bool {
	return d.EmbeddingID != ""
}

// EmbeddingPayload is the denormalized payload stored next to a vector in the
// vector index. It carries everything search needs to resolve and filter a hit
// without touching the document store.
type EmbeddingPayload struct {
	DocumentID string         `json:"document_id"`
	Title      string         `json:"title"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  int64          `json:"created_at"`
}

// SearchResult is a single ranked search hit.
type SearchResult struct {
	DocumentID      string         `json:"document_id"`
	Title           string         `json:"title"`
	ContentSnippet  string         `json:"content_snippet"`
	SimilarityScore float64        `json:"similarity_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// FilterableMetadata returns the subset of metadata that can be stored as a
// vector payload and used for exact-match filtering: scalars and string arrays.
// Nested maps and other composite values are dropped.
func FilterableMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string, bool, int, int32, int64, float32, float64:
			out[k] = val
		case []string:
			out[k] = val
		case []any:
			strs := make([]string, 0, len(val))
			ok := true
			for _, item := range val {
				s, isStr := item.(string)
				if !isStr {
					ok = false
					break
				}
				strs = append(strs, s)
			}
			if ok {
				out[k] = strs
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
