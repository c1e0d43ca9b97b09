package types

// DocumentChunk is one piece of a larger source text produced by the chunker.
type DocumentChunk struct {
	Content  string // The actual text content
	Sequence int    // Position of the chunk within the source
}

// ChunkerConfig contains configuration options for text chunking.
type ChunkerConfig struct {
	MaxChunkSize int // Maximum size for text chunks, in runes
	OverlapSize  int // Size of overlap between consecutive chunks, in runes
}
