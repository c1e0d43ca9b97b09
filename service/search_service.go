package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tieubaoca/knowledge-be/database"
	"github.com/tieubaoca/knowledge-be/repository"
	"github.com/tieubaoca/knowledge-be/types"
	"github.com/tieubaoca/knowledge-be/utils"
)

// SearchOptions are the aggregator's tunables.
type SearchOptions struct {
	DefaultLimit     int         // applied when the request does not set a limit
	MaxLimit         int         // hard cap on requested limits
	SnippetLength    int         // content snippet length in runes
	FetchConcurrency int         // parallel document fetches per search
	Retry            RetryPolicy // backoff for transient index/store failures
}

// SearchService answers semantic queries: it embeds the query text, asks the
// vector index for nearest neighbors, resolves each hit back to its full
// document, and assembles ranked results. Hits whose document has been
// deleted since the vector read are dropped, not errors.
type SearchService struct {
	repo     repository.DocumentRepo
	index    database.VectorIndex
	embedder EmbeddingProvider
	opts     SearchOptions
	logger   *slog.Logger
}

func NewSearchService(
	repo repository.DocumentRepo,
	index database.VectorIndex,
	embedder EmbeddingProvider,
	opts SearchOptions,
	logger *slog.Logger,
) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = 240
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 8
	}
	if opts.Retry.MaxRetries <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &SearchService{
		repo:     repo,
		index:    index,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

func (s *SearchService) Search(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &types.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		return nil, &types.ValidationError{Field: "min_similarity", Reason: "must be in [0, 1]"}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}

	queryVector, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var hits []database.VectorHit
	err = withRetry(ctx, s.opts.Retry, func() error {
		var queryErr error
		hits, queryErr = s.index.Query(ctx, queryVector, limit, req.Filter, req.MinSimilarity)
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	if len(hits) == 0 {
		return []types.SearchResult{}, nil
	}

	// Hydrate hits in parallel, keeping the index's score order by writing
	// each document back into its hit's slot. A hit whose document cannot be
	// fetched (deleted since the vector read, or a store failure that
	// survived the retry budget) is dropped, never the whole search. Only
	// the query embedding and the vector query can fail a search.
	docs := make([]*types.Document, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)
	for i, hit := range hits {
		i, hit := i, hit
		g.Go(func() error {
			var doc *types.Document
			err := withRetry(gctx, s.opts.Retry, func() error {
				var getErr error
				doc, getErr = s.repo.Get(gctx, hit.Payload.DocumentID)
				return getErr
			})
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					s.logger.Warn("dropping stale search hit",
						"document_id", hit.Payload.DocumentID, "embedding_id", hit.EmbeddingID)
				} else {
					s.logger.Warn("dropping search hit after fetch failure",
						"document_id", hit.Payload.DocumentID, "embedding_id", hit.EmbeddingID, "error", err)
				}
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(hits))
	for i, hit := range hits {
		doc := docs[i]
		if doc == nil {
			continue
		}
		results = append(results, types.SearchResult{
			DocumentID:      doc.ID,
			Title:           doc.Title,
			ContentSnippet:  utils.Snippet(doc.Content, s.opts.SnippetLength),
			SimilarityScore: hit.Score,
			Metadata:        doc.Metadata,
		})
	}
	return results, nil
}
