package service

import (
	"strings"
	"unicode"

	"github.com/tieubaoca/knowledge-be/types"
)

var DefaultChunkerConfig = types.ChunkerConfig{
	MaxChunkSize: 1024,
	OverlapSize:  128,
}

// TextChunker splits source text into overlapping chunks sized for embedding.
type TextChunker struct {
	maxChunkSize int
	overlapSize  int
}

func NewTextChunker(config types.ChunkerConfig) *TextChunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkerConfig.MaxChunkSize
	}
	if config.OverlapSize < 0 || config.OverlapSize >= config.MaxChunkSize {
		config.OverlapSize = config.MaxChunkSize / 8
	}
	return &TextChunker{
		maxChunkSize: config.MaxChunkSize,
		overlapSize:  config.OverlapSize,
	}
}

// Chunk splits text into chunks of at most MaxChunkSize runes, breaking on
// whitespace where possible. Consecutive chunks overlap by roughly
// OverlapSize runes so sentences straddling a boundary stay searchable.
func (c *TextChunker) Chunk(text string) []types.DocumentChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []types.DocumentChunk
	seq := 0
	start := 0
	for start < len(runes) {
		end := start + c.maxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Back up to the nearest whitespace so words are not split.
			boundary := end
			for boundary > start && !unicode.IsSpace(runes[boundary-1]) {
				boundary--
			}
			if boundary > start {
				end = boundary
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, types.DocumentChunk{
				Content:  content,
				Sequence: seq,
			})
			seq++
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlapSize
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
