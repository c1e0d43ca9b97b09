package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tieubaoca/knowledge-be/types"
	"github.com/tieubaoca/knowledge-be/utils"
)

type memoryVector struct {
	vector  []float32
	payload types.EmbeddingPayload
	seq     uint64 // upsert recency, used to break score ties
}

// MemoryVectorIndex is an in-memory VectorIndex with exact cosine scoring.
// It backs tests and the "memory" storage mode; it is not meant to hold large
// collections. Safe for concurrent use.
type MemoryVectorIndex struct {
	mu        sync.RWMutex
	dimension int
	items     map[string]memoryVector
	nextSeq   uint64
}

var _ VectorIndex = (*MemoryVectorIndex)(nil)

func NewMemoryVectorIndex(dimension int) *MemoryVectorIndex {
	return &MemoryVectorIndex{
		dimension: dimension,
		items:     make(map[string]memoryVector),
	}
}

func (s *MemoryVectorIndex) EnsureCollection(ctx context.Context) error { return nil }

func (s *MemoryVectorIndex) DropCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]memoryVector)
	return nil
}

func (s *MemoryVectorIndex) Upsert(ctx context.Context, embeddingID string, vector []float32, payload types.EmbeddingPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongDimension, len(vector), s.dimension)
	}
	stored := make([]float32, len(vector))
	copy(stored, vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.items[embeddingID] = memoryVector{
		vector:  stored,
		payload: payload,
		seq:     s.nextSeq,
	}
	return nil
}

func (s *MemoryVectorIndex) Query(ctx context.Context, vector []float32, limit int, filter map[string]any, minScore float64) ([]VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongDimension, len(vector), s.dimension)
	}

	s.mu.RLock()
	type scored struct {
		hit VectorHit
		seq uint64
	}
	candidates := make([]scored, 0, len(s.items))
	for id, item := range s.items {
		if !matchesFilter(item.payload.Metadata, filter) {
			continue
		}
		score := utils.NormalizedSimilarity(vector, item.vector)
		if score < minScore {
			continue
		}
		candidates = append(candidates, scored{
			hit: VectorHit{EmbeddingID: id, Payload: item.payload, Score: score},
			seq: item.seq,
		})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		return candidates[i].seq > candidates[j].seq
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	hits := make([]VectorHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, c.hit)
	}
	return hits, nil
}

func (s *MemoryVectorIndex) Delete(ctx context.Context, embeddingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, embeddingID)
	return nil
}

// Len returns the number of stored vectors.
func (s *MemoryVectorIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the payload stored under embeddingID.
func (s *MemoryVectorIndex) Get(embeddingID string) (types.EmbeddingPayload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[embeddingID]
	return item.payload, ok
}

// matchesFilter reports whether metadata satisfies every filter entry.
// Scalar values match on string-formatted equality; a string-array metadata
// value matches when it contains the filter value.
func matchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		switch v := got.(type) {
		case []string:
			found := false
			for _, item := range v {
				if item == fmt.Sprint(want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if fmt.Sprint(v) != fmt.Sprint(want) {
				return false
			}
		}
	}
	return true
}
