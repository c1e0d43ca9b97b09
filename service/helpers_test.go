package service

import (
	"context"
	"strings"
	"sync"

	"github.com/tieubaoca/knowledge-be/database"
	"github.com/tieubaoca/knowledge-be/repository"
	"github.com/tieubaoca/knowledge-be/types"
)

// testVocab fixes the embedding space for tests: one dimension per word, so
// cosine similarity tracks word overlap and rankings are deterministic.
var testVocab = []string{
	"mcp", "onboarding", "server", "protocol", "tool",
	"payroll", "invoice", "kubernetes", "deploy", "guide",
}

// wordEmbedder is a deterministic EmbeddingProvider that counts vocabulary
// word occurrences. Texts sharing more words embed closer together.
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error // returned by every call when set
}

func (e *wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := validateEmbedInput(text, 0); err != nil {
		return nil, err
	}
	vec := make([]float32, len(testVocab))
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		for i, v := range testVocab {
			if strings.Contains(w, v) {
				vec[i]++
			}
		}
	}
	// An all-zero vector scores 0 against everything; nudge the last
	// dimension so unrelated texts still have a direction.
	var sum float32
	for _, x := range vec {
		sum += x
	}
	if sum == 0 {
		vec[len(vec)-1] = 0.001
	}
	return vec, nil
}

func (e *wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *wordEmbedder) Dimension() int { return len(testVocab) }

func (e *wordEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// faultyIndex wraps a MemoryVectorIndex with injectable per-operation
// failures. Errors pop off the front of the queue, so a one-element queue
// fails the first call and lets later calls through.
type faultyIndex struct {
	*database.MemoryVectorIndex
	mu         sync.Mutex
	upsertErrs []error
	deleteErrs []error
	queryErrs  []error
	onUpsert   func() // runs before the underlying upsert
}

func newFaultyIndex(dimension int) *faultyIndex {
	return &faultyIndex{MemoryVectorIndex: database.NewMemoryVectorIndex(dimension)}
}

func popErr(mu *sync.Mutex, errs *[]error) error {
	mu.Lock()
	defer mu.Unlock()
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *faultyIndex) Upsert(ctx context.Context, embeddingID string, vector []float32, payload types.EmbeddingPayload) error {
	if f.onUpsert != nil {
		f.onUpsert()
	}
	if err := popErr(&f.mu, &f.upsertErrs); err != nil {
		return err
	}
	return f.MemoryVectorIndex.Upsert(ctx, embeddingID, vector, payload)
}

func (f *faultyIndex) Delete(ctx context.Context, embeddingID string) error {
	if err := popErr(&f.mu, &f.deleteErrs); err != nil {
		return err
	}
	return f.MemoryVectorIndex.Delete(ctx, embeddingID)
}

func (f *faultyIndex) Query(ctx context.Context, vector []float32, limit int, filter map[string]any, minScore float64) ([]database.VectorHit, error) {
	if err := popErr(&f.mu, &f.queryErrs); err != nil {
		return nil, err
	}
	return f.MemoryVectorIndex.Query(ctx, vector, limit, filter, minScore)
}

// faultyRepo wraps a MemoryDocumentRepo the same way.
type faultyRepo struct {
	*repository.MemoryDocumentRepo
	mu            sync.Mutex
	insertErrs    []error
	setErrs       []error
	deleteErrs    []error
	getErrs       []error
	failInsertAt  int // 1-based insert call that fails with failInsertErr, 0 = disabled
	failInsertErr error
	insertCalls   int
}

func newFaultyRepo() *faultyRepo {
	return &faultyRepo{MemoryDocumentRepo: repository.NewMemoryDocumentRepo()}
}

func (f *faultyRepo) Insert(ctx context.Context, doc *types.Document) (*types.Document, error) {
	f.mu.Lock()
	f.insertCalls++
	targeted := f.failInsertAt > 0 && f.insertCalls == f.failInsertAt
	f.mu.Unlock()
	if targeted {
		return nil, f.failInsertErr
	}
	if err := popErr(&f.mu, &f.insertErrs); err != nil {
		return nil, err
	}
	return f.MemoryDocumentRepo.Insert(ctx, doc)
}

func (f *faultyRepo) SetEmbeddingID(ctx context.Context, id, embeddingID string) error {
	if err := popErr(&f.mu, &f.setErrs); err != nil {
		return err
	}
	return f.MemoryDocumentRepo.SetEmbeddingID(ctx, id, embeddingID)
}

func (f *faultyRepo) Delete(ctx context.Context, id string) error {
	if err := popErr(&f.mu, &f.deleteErrs); err != nil {
		return err
	}
	return f.MemoryDocumentRepo.Delete(ctx, id)
}

func (f *faultyRepo) Get(ctx context.Context, id string) (*types.Document, error) {
	if err := popErr(&f.mu, &f.getErrs); err != nil {
		return nil, err
	}
	return f.MemoryDocumentRepo.Get(ctx, id)
}

// fastRetry keeps test retries effectively instant.
func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 1,
		MaxInterval:     1,
		Multiplier:      1.0,
	}
}
