package types

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type DataResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// BatchStoreStatus reports the progress of one document in a batch ingest.
// Streamed as SSE events by the batch endpoint and as messages by the
// websocket ingest endpoint.
type BatchStoreStatus struct {
	Index      int    `json:"index"`
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Total      int    `json:"total"`
	Processed  int    `json:"processed"`
}
