package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tieubaoca/knowledge-be/types"
)

// MemoryDocumentRepo is an in-memory DocumentRepo for tests and the "memory"
// storage mode. Safe for concurrent use.
type MemoryDocumentRepo struct {
	mu   sync.RWMutex
	docs map[string]types.Document
}

var _ DocumentRepo = (*MemoryDocumentRepo)(nil)

func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{
		docs: make(map[string]types.Document),
	}
}

func (r *MemoryDocumentRepo) Insert(ctx context.Context, doc *types.Document) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	inserted := *doc
	inserted.ID = uuid.New().String()
	inserted.CreatedAt = now
	inserted.UpdatedAt = now

	r.mu.Lock()
	r.docs[inserted.ID] = inserted
	r.mu.Unlock()
	return &inserted, nil
}

func (r *MemoryDocumentRepo) Get(ctx context.Context, id string) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	copied := doc
	return &copied, nil
}

func (r *MemoryDocumentRepo) SetEmbeddingID(ctx context.Context, id, embeddingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	doc.EmbeddingID = embeddingID
	doc.UpdatedAt = time.Now().Unix()
	r.docs[id] = doc
	return nil
}

func (r *MemoryDocumentRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return types.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

// Len returns the number of stored documents.
func (r *MemoryDocumentRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
