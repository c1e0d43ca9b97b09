package database

import (
	"context"
	"errors"

	"github.com/tieubaoca/knowledge-be/types"
)

// ErrWrongDimension is returned when a vector does not match the index's
// configured dimension.
var ErrWrongDimension = errors.New("wrong vector dimension")

// VectorHit is a single ranked hit from a vector index query.
type VectorHit struct {
	EmbeddingID string
	Payload     types.EmbeddingPayload
	Score       float64 // cosine similarity normalized to [0, 1]
}

// VectorIndex defines the interface for vector storage and similarity search.
// Scores are cosine similarity normalized to [0, 1]; for equal scores the most
// recently upserted vector ranks first. Delete is idempotent.
type VectorIndex interface {
	// Upsert stores or replaces the vector and payload under embeddingID.
	Upsert(ctx context.Context, embeddingID string, vector []float32, payload types.EmbeddingPayload) error

	// Query returns up to limit hits ordered by descending score. filter
	// restricts hits to payloads whose metadata exactly matches every entry;
	// hits scoring below minScore are excluded before limit is applied.
	Query(ctx context.Context, vector []float32, limit int, filter map[string]any, minScore float64) ([]VectorHit, error)

	// Delete removes the vector under embeddingID. Deleting a non-existent
	// id is not an error.
	Delete(ctx context.Context, embeddingID string) error

	// EnsureCollection provisions the backing collection if it does not exist.
	EnsureCollection(ctx context.Context) error

	// DropCollection removes the backing collection and all vectors in it.
	DropCollection(ctx context.Context) error
}
