package service

import (
	"context"
	"strings"
	"time"

	"github.com/tieubaoca/knowledge-be/types"
)

// EmbeddingProvider turns text into fixed-dimension vectors. Every vector
// returned by one provider instance has length Dimension(), whether it came
// from Embed or EmbedBatch.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// EmbeddingOptions are the shared knobs of the provider implementations.
// MaxConcurrent caps in-flight provider calls process-wide; Timeout bounds a
// single call; MaxRetries and Retry shape the transient-failure backoff.
type EmbeddingOptions struct {
	Model         string
	Dimension     int
	MaxConcurrent int
	MaxRetries    int
	Timeout       time.Duration
	BatchSize     int
	MaxInputChars int
	Retry         RetryPolicy
}

func validateEmbedInput(text string, maxChars int) error {
	if strings.TrimSpace(text) == "" {
		return &types.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if maxChars > 0 && len(text) > maxChars {
		return &types.ValidationError{Field: "text", Reason: "exceeds maximum input length"}
	}
	return nil
}

// chunkTexts splits texts into provider-call-sized batches.
func chunkTexts(texts []string, size int) [][]string {
	if size <= 0 {
		size = 64
	}
	var chunks [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		chunks = append(chunks, texts[start:end])
	}
	return chunks
}
