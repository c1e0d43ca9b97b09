package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieubaoca/knowledge-be/types"
)

func newTestKnowledgeService(repo *faultyRepo, index *faultyIndex, embedder EmbeddingProvider) *KnowledgeService {
	return NewKnowledgeService(repo, index, embedder, fastRetry(), nil)
}

func TestStoreDocumentSuccess(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	embedder := &wordEmbedder{}
	svc := newTestKnowledgeService(repo, index, embedder)

	doc, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:    "MCP Onboarding",
		Content:  "How to onboard a new MCP server",
		Metadata: map[string]any{"source": "wiki"},
	})
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.NotEmpty(t, doc.ID)
	assert.True(t, doc.Searchable())
	assert.NotZero(t, doc.CreatedAt)

	stored, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.EmbeddingID, stored.EmbeddingID)

	payload, ok := index.Get(doc.EmbeddingID)
	require.True(t, ok)
	assert.Equal(t, doc.ID, payload.DocumentID)
	assert.Equal(t, "MCP Onboarding", payload.Title)
	assert.Equal(t, map[string]any{"source": "wiki"}, payload.Metadata)
}

func TestStoreDocumentValidationTouchesNothing(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	embedder := &wordEmbedder{}
	svc := newTestKnowledgeService(repo, index, embedder)

	cases := []types.StoreDocumentRequest{
		{Title: "", Content: "body"},
		{Title: "   ", Content: "body"},
		{Title: "title", Content: ""},
		{Title: "title", Content: "\n\t "},
	}
	for _, req := range cases {
		_, err := svc.StoreDocument(context.Background(), req)
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
	}
	assert.Zero(t, repo.Len())
	assert.Zero(t, index.Len())
	assert.Zero(t, embedder.callCount())
}

func TestStoreDocumentEmbedFailureRollsBack(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	embedder := &wordEmbedder{err: &types.ProviderError{Err: errors.New("invalid api key")}}
	svc := newTestKnowledgeService(repo, index, embedder)

	_, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	var providerErr *types.ProviderError
	require.ErrorAs(t, err, &providerErr)

	// The document inserted before embedding must be rolled back.
	assert.Zero(t, repo.Len())
	assert.Zero(t, index.Len())
}

func TestStoreDocumentUpsertFailureRollsBack(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	storageErr := &types.StorageError{Op: "upsert", Err: errors.New("class missing")}
	// Permanent failure: not retried, triggers compensation.
	index.upsertErrs = []error{storageErr}
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	_, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storageErr)
	assert.Zero(t, repo.Len(), "document must not survive a failed vector write")
	assert.Zero(t, index.Len())
}

func TestStoreDocumentTransientUpsertRetried(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	index.upsertErrs = []error{
		&types.StoreTimeoutError{Op: "upsert", Err: context.DeadlineExceeded},
	}
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	doc, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.NoError(t, err)
	assert.True(t, doc.Searchable())
	assert.Equal(t, 1, index.Len())
}

func TestStoreDocumentSetEmbeddingIDFailureRollsBack(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	repo.setErrs = []error{&types.StorageError{Op: "update", Err: errors.New("write concern")}}
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	_, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.Error(t, err)

	// Both the document and the already-written vector are rolled back.
	assert.Zero(t, repo.Len())
	assert.Zero(t, index.Len())
}

func TestStoreDocumentRollbackFailureIsConsistencyError(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	storeErr := &types.StorageError{Op: "upsert", Err: errors.New("down")}
	index.upsertErrs = []error{storeErr}
	repo.deleteErrs = []error{&types.StorageError{Op: "delete", Err: errors.New("also down")}}
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	_, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	var consistencyErr *types.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.NotEmpty(t, consistencyErr.DocumentID)
	assert.ErrorIs(t, consistencyErr.StoreErr, storeErr)

	// The half-stored document is still there; that is exactly what the
	// error reports for reconciliation.
	assert.Equal(t, 1, repo.Len())
	stored, err := repo.Get(context.Background(), consistencyErr.DocumentID)
	require.NoError(t, err)
	assert.False(t, stored.Searchable())
}

func TestStoreDocumentCancellationStillCompensates(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	ctx, cancel := context.WithCancel(context.Background())
	// Cancel the caller's context mid-saga, then fail the vector write.
	// Rollback runs on a detached context, so the delete must still land.
	index.onUpsert = cancel
	index.upsertErrs = []error{&types.StorageError{Op: "upsert", Err: errors.New("down")}}
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	_, err := svc.StoreDocument(ctx, types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.Error(t, err)
	var consistencyErr *types.ConsistencyError
	assert.False(t, errors.As(err, &consistencyErr), "rollback should have succeeded")
	assert.Zero(t, repo.Len())
	assert.Zero(t, index.Len())
}

func TestStoreDocumentBatchPartialFailure(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	repo.failInsertAt = 2
	repo.failInsertErr = &types.StorageError{Op: "insert", Err: errors.New("duplicate key")}
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	reqs := []types.StoreDocumentRequest{
		{Title: "first", Content: "mcp server"},
		{Title: "second", Content: "payroll guide"},
		{Title: "third", Content: "kubernetes deploy"},
	}
	var statuses []types.BatchStoreStatus
	docs, err := svc.StoreDocumentBatch(context.Background(), reqs, func(s types.BatchStoreStatus) {
		statuses = append(statuses, s)
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.NotNil(t, docs[0])
	assert.Nil(t, docs[1], "failed document leaves a nil slot")
	assert.NotNil(t, docs[2])
	assert.Equal(t, 2, repo.Len())
	assert.Equal(t, 2, index.Len())

	require.Len(t, statuses, 3)
	assert.Equal(t, types.StatusSuccess, statuses[0].Status)
	assert.Equal(t, types.StatusError, statuses[1].Status)
	assert.Equal(t, types.StatusSuccess, statuses[2].Status)
	for _, s := range statuses {
		assert.Equal(t, 3, s.Total)
	}
	assert.Equal(t, 3, statuses[2].Processed)
}

func TestStoreDocumentBatchValidationFailsFast(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	embedder := &wordEmbedder{}
	svc := newTestKnowledgeService(repo, index, embedder)

	_, err := svc.StoreDocumentBatch(context.Background(), []types.StoreDocumentRequest{
		{Title: "good", Content: "content"},
		{Title: "", Content: "missing title"},
	}, nil)
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, repo.Len())
	assert.Zero(t, embedder.callCount(), "no embedding call before the batch validates")
}

func TestGetDocument(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	stored, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.NoError(t, err)

	doc, err := svc.GetDocument(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, doc.ID)

	_, err = svc.GetDocument(context.Background(), "missing-id")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = svc.GetDocument(context.Background(), "  ")
	var validationErr *types.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDeleteDocument(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	doc, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(context.Background(), doc.ID))
	assert.Zero(t, repo.Len())
	assert.Zero(t, index.Len())

	// Repeat delete of a gone document is a NotFound, which callers may ignore.
	err = svc.DeleteDocument(context.Background(), doc.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteDocumentVectorFailureKeepsDocument(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	doc, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.NoError(t, err)

	index.deleteErrs = []error{&types.StorageError{Op: "delete", Err: errors.New("down")}}
	err = svc.DeleteDocument(context.Background(), doc.ID)
	require.Error(t, err)

	// Vector delete failed first, so nothing was removed at all.
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, 1, index.Len())
}

func TestDeleteDocumentPartialDelete(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	svc := newTestKnowledgeService(repo, index, &wordEmbedder{})

	doc, err := svc.StoreDocument(context.Background(), types.StoreDocumentRequest{
		Title:   "doc",
		Content: "content",
	})
	require.NoError(t, err)

	repoErr := &types.StorageError{Op: "delete", Err: errors.New("down")}
	// Exhaust the retry budget on the document delete.
	repo.deleteErrs = []error{repoErr, repoErr, repoErr}
	err = svc.DeleteDocument(context.Background(), doc.ID)

	var partialErr *types.PartialDeleteError
	require.ErrorAs(t, err, &partialErr)
	assert.Equal(t, doc.ID, partialErr.DocumentID)
	assert.Equal(t, doc.EmbeddingID, partialErr.EmbeddingID)

	// Vector is gone, document remains: invisible to search, fetchable by id.
	assert.Zero(t, index.Len())
	assert.Equal(t, 1, repo.Len())

	// Re-issuing the delete finishes the job.
	require.NoError(t, svc.DeleteDocument(context.Background(), doc.ID))
	assert.Zero(t, repo.Len())
}
