/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tieubaoca/knowledge-be/config"
	"github.com/tieubaoca/knowledge-be/database"
	"github.com/tieubaoca/knowledge-be/repository"
	"github.com/tieubaoca/knowledge-be/service"
)

// engine is the wired-up core shared by the serve and ingest commands.
type engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      repository.DocumentRepo
	index     database.VectorIndex
	embedder  service.EmbeddingProvider
	knowledge *service.KnowledgeService
	search    *service.SearchService
	cleanup   func(context.Context) error
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	retry := service.RetryPolicy{
		MaxRetries:      cfg.Embedding.MaxRetries,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}

	embedder, err := newEmbedder(cfg, retry)
	if err != nil {
		return nil, err
	}

	e := &engine{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		cleanup:  func(context.Context) error { return nil },
	}

	switch cfg.Storage {
	case config.StorageMemory:
		e.repo = repository.NewMemoryDocumentRepo()
		e.index = database.NewMemoryVectorIndex(cfg.Embedding.Dimension)

	case config.StorageMongo:
		mongoClient, err := database.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		e.cleanup = mongoClient.Disconnect
		collection := mongoClient.Database(cfg.MongoDatabase).Collection("documents")
		e.repo = repository.NewDocumentRepo(collection, cfg.StoreTimeout)

		index, err := database.NewWeaviateIndex(database.WeaviateConfig{
			Host:      cfg.Weaviate.Host,
			APIKey:    cfg.Weaviate.APIKey,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.StoreTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		e.index = index

	default:
		return nil, fmt.Errorf("unknown storage mode: %q", cfg.Storage)
	}

	if err := e.index.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	e.knowledge = service.NewKnowledgeService(e.repo, e.index, e.embedder, retry, logger)
	e.search = service.NewSearchService(e.repo, e.index, e.embedder, service.SearchOptions{
		DefaultLimit:     cfg.Search.DefaultLimit,
		MaxLimit:         cfg.Search.MaxLimit,
		SnippetLength:    cfg.Search.SnippetLength,
		FetchConcurrency: cfg.Search.FetchConcurrency,
		Retry:            retry,
	}, logger)
	return e, nil
}

func newEmbedder(cfg *config.Config, retry service.RetryPolicy) (service.EmbeddingProvider, error) {
	opts := service.EmbeddingOptions{
		Model:         cfg.Embedding.Model,
		Dimension:     cfg.Embedding.Dimension,
		MaxConcurrent: cfg.Embedding.MaxConcurrent,
		MaxRetries:    cfg.Embedding.MaxRetries,
		Timeout:       cfg.Embedding.Timeout,
		BatchSize:     cfg.Embedding.BatchSize,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		Retry:         retry,
	}
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		return service.NewOpenAIEmbeddingService(cfg.Embedding.BaseURL, cfg.Embedding.OpenAIAPIKey, opts), nil
	case config.ProviderGemini:
		return service.NewGeminiEmbeddingService(cfg.Embedding.GeminiAPIKeys, opts)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}
