package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tieubaoca/knowledge-be/database"
	"github.com/tieubaoca/knowledge-be/repository"
	"github.com/tieubaoca/knowledge-be/types"
)

// KnowledgeService coordinates writes and deletes across the document store
// and the vector index. The two stores fail independently and share no
// transaction manager, so every write is a small saga: insert the document,
// embed, write the vector, finalize — and compensate by deleting the document
// if any later step fails. Deletes run in the opposite order, vector first,
// so search never points at a document that is gone.
//
// All collaborators are constructor-injected; the service holds no mutable
// state of its own and is safe for concurrent use.
type KnowledgeService struct {
	repo     repository.DocumentRepo
	index    database.VectorIndex
	embedder EmbeddingProvider
	retry    RetryPolicy
	logger   *slog.Logger
}

func NewKnowledgeService(
	repo repository.DocumentRepo,
	index database.VectorIndex,
	embedder EmbeddingProvider,
	retry RetryPolicy,
	logger *slog.Logger,
) *KnowledgeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeService{
		repo:     repo,
		index:    index,
		embedder: embedder,
		retry:    retry,
		logger:   logger,
	}
}

// StoreDocument ingests a single document. On return the document is either
// fully stored and searchable, or absent from both stores — except for the
// ConsistencyError case, where the compensating delete itself failed and the
// document id is logged for manual reconciliation.
func (s *KnowledgeService) StoreDocument(ctx context.Context, req types.StoreDocumentRequest) (*types.Document, error) {
	if err := validateStoreRequest(req); err != nil {
		return nil, err
	}

	// Durability point: after this insert the document is fetchable by id,
	// but not yet searchable.
	inserted, err := s.insertDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, req.Content)
	if err != nil {
		return nil, s.compensate(ctx, inserted.ID, "", err)
	}

	return s.finalizeDocument(ctx, inserted, vector)
}

// StoreDocumentBatch ingests several documents with one batched embedding
// call. Each document is finalized independently with the same compensation
// semantics as StoreDocument; onStatus (optional) receives per-document
// progress. The returned slice holds an entry per request, nil where that
// document failed.
func (s *KnowledgeService) StoreDocumentBatch(
	ctx context.Context,
	reqs []types.StoreDocumentRequest,
	onStatus func(types.BatchStoreStatus),
) ([]*types.Document, error) {
	if len(reqs) == 0 {
		return nil, &types.ValidationError{Field: "documents", Reason: "must not be empty"}
	}
	for _, req := range reqs {
		if err := validateStoreRequest(req); err != nil {
			return nil, err
		}
	}

	contents := make([]string, len(reqs))
	for i, req := range reqs {
		contents[i] = req.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, err
	}

	report := func(status types.BatchStoreStatus) {
		if onStatus != nil {
			status.Total = len(reqs)
			onStatus(status)
		}
	}

	docs := make([]*types.Document, len(reqs))
	for i, req := range reqs {
		inserted, err := s.insertDocument(ctx, req)
		if err == nil {
			inserted, err = s.finalizeDocument(ctx, inserted, vectors[i])
		}
		if err != nil {
			s.logger.Warn("batch store: document failed", "index", i, "title", req.Title, "error", err)
			report(types.BatchStoreStatus{
				Index:     i,
				Title:     req.Title,
				Status:    types.StatusError,
				Message:   err.Error(),
				Processed: i + 1,
			})
			continue
		}
		docs[i] = inserted
		report(types.BatchStoreStatus{
			Index:      i,
			DocumentID: inserted.ID,
			Title:      inserted.Title,
			Status:     types.StatusSuccess,
			Processed:  i + 1,
		})
	}
	return docs, nil
}

// GetDocument fetches a document by id.
func (s *KnowledgeService) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &types.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	var doc *types.Document
	err := withRetry(ctx, s.retry, func() error {
		var getErr error
		doc, getErr = s.repo.Get(ctx, id)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document from both stores, vector index first so
// the document drops out of search results before it stops being fetchable.
// Returns types.ErrNotFound for unknown ids (safe to ignore: a repeat delete
// is a no-op). A PartialDeleteError means the vector is gone but the document
// record remains; re-issuing the delete is safe.
func (s *KnowledgeService) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if doc.EmbeddingID != "" {
		err = withRetry(ctx, s.retry, func() error {
			return s.index.Delete(ctx, doc.EmbeddingID)
		})
		if err != nil {
			return fmt.Errorf("failed to delete vector for document %s: %w", id, err)
		}
	}

	err = withRetry(ctx, s.retry, func() error {
		deleteErr := s.repo.Delete(ctx, id)
		if errors.Is(deleteErr, types.ErrNotFound) {
			// Lost a race with another delete; the document is gone either way.
			return nil
		}
		return deleteErr
	})
	if err != nil {
		partial := &types.PartialDeleteError{DocumentID: id, EmbeddingID: doc.EmbeddingID, Err: err}
		s.logger.Error("partial delete: document unsearchable but still stored",
			"document_id", id, "embedding_id", doc.EmbeddingID, "error", err)
		return partial
	}

	s.logger.Debug("deleted document", "document_id", id, "embedding_id", doc.EmbeddingID)
	return nil
}

func (s *KnowledgeService) insertDocument(ctx context.Context, req types.StoreDocumentRequest) (*types.Document, error) {
	doc := &types.Document{
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
	}
	var inserted *types.Document
	err := withRetry(ctx, s.retry, func() error {
		var insertErr error
		inserted, insertErr = s.repo.Insert(ctx, doc)
		return insertErr
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// finalizeDocument writes the vector and sets the embedding reference. Only
// after SetEmbeddingID succeeds is the document searchable; any failure on the
// way rolls the document back out of the store.
func (s *KnowledgeService) finalizeDocument(ctx context.Context, doc *types.Document, vector []float32) (*types.Document, error) {
	embeddingID := uuid.New().String()
	payload := types.EmbeddingPayload{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Metadata:   types.FilterableMetadata(doc.Metadata),
		CreatedAt:  doc.CreatedAt,
	}

	err := withRetry(ctx, s.retry, func() error {
		return s.index.Upsert(ctx, embeddingID, vector, payload)
	})
	if err != nil {
		return nil, s.compensate(ctx, doc.ID, "", err)
	}

	err = withRetry(ctx, s.retry, func() error {
		return s.repo.SetEmbeddingID(ctx, doc.ID, embeddingID)
	})
	if err != nil {
		return nil, s.compensate(ctx, doc.ID, embeddingID, err)
	}

	doc.EmbeddingID = embeddingID
	s.logger.Debug("stored document", "document_id", doc.ID, "embedding_id", embeddingID,
		"content_length", len(doc.Content))
	return doc, nil
}

// compensate rolls back a half-finished store: best-effort vector delete when
// one was written, then delete of the document inserted at the durability
// point. Runs on a context detached from the caller's so cancellation of the
// original request cannot strand a half-stored document. The compensating
// delete is attempted once per retry budget and never looped indefinitely: if
// it fails, the ConsistencyError carries everything an operator needs.
func (s *KnowledgeService) compensate(ctx context.Context, documentID, embeddingID string, cause error) error {
	rollbackCtx := context.WithoutCancel(ctx)

	if embeddingID != "" {
		if err := s.index.Delete(rollbackCtx, embeddingID); err != nil {
			// The orphan vector is unreachable through search once the
			// document is gone; reconciliation can sweep it.
			s.logger.Warn("rollback: failed to delete vector", "embedding_id", embeddingID, "error", err)
		}
	}

	err := withRetry(rollbackCtx, s.retry, func() error {
		deleteErr := s.repo.Delete(rollbackCtx, documentID)
		if errors.Is(deleteErr, types.ErrNotFound) {
			return nil
		}
		return deleteErr
	})
	if err != nil {
		consistency := &types.ConsistencyError{
			DocumentID:  documentID,
			EmbeddingID: embeddingID,
			StoreErr:    cause,
			RollbackErr: err,
		}
		s.logger.Error("rollback failed, manual reconciliation required",
			"document_id", documentID, "embedding_id", embeddingID,
			"store_error", cause, "rollback_error", err)
		return consistency
	}

	s.logger.Warn("rolled back document after store failure", "document_id", documentID, "error", cause)
	return fmt.Errorf("failed to store document: %w", cause)
}

func validateStoreRequest(req types.StoreDocumentRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return &types.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.Content) == "" {
		return &types.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}
