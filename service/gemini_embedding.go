package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tieubaoca/knowledge-be/types"
)

// GeminiEmbeddingService implements EmbeddingProvider on the Gemini embedding
// API. Multiple API keys may be supplied; the service rotates to the next key
// when a call fails with a transient error (typically quota exhaustion).
type GeminiEmbeddingService struct {
	apiKeys    []string
	currentKey int
	client     *genai.Client
	mu         sync.Mutex

	model   string
	dim     int
	sem     chan struct{}
	timeout time.Duration
	retry   RetryPolicy
	batch   int
	maxIn   int
}

var _ EmbeddingProvider = (*GeminiEmbeddingService)(nil)

func NewGeminiEmbeddingService(apiKeys []string, opts EmbeddingOptions) (*GeminiEmbeddingService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 64
	}
	retry := opts.Retry
	if retry.MaxRetries == 0 && opts.MaxRetries > 0 {
		retry.MaxRetries = opts.MaxRetries
	}
	service := &GeminiEmbeddingService{
		apiKeys: apiKeys,
		model:   opts.Model,
		dim:     opts.Dimension,
		sem:     make(chan struct{}, maxConcurrent),
		timeout: timeout,
		retry:   retry,
		batch:   batch,
		maxIn:   opts.MaxInputChars,
	}
	if err := service.initClient(); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *GeminiEmbeddingService) initClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	if s.client != nil {
		s.client.Close()
	}
	s.client = client
	return nil
}

// rotateKey switches to the next API key and rebuilds the client. Called
// between retries after a transient failure.
func (s *GeminiEmbeddingService) rotateKey() {
	if len(s.apiKeys) < 2 {
		return
	}
	s.mu.Lock()
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	s.mu.Unlock()
	_ = s.initClient()
}

func (s *GeminiEmbeddingService) embeddingModel() *genai.EmbeddingModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.EmbeddingModel(s.model)
}

func (s *GeminiEmbeddingService) Dimension() int { return s.dim }

func (s *GeminiEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateEmbedInput(text, s.maxIn); err != nil {
		return nil, err
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var vector []float32
	err := withRetry(ctx, s.retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		res, err := s.embeddingModel().EmbedContent(callCtx, genai.Text(text))
		if err != nil {
			classified := classifyGeminiError(err)
			if types.IsTransient(classified) {
				s.rotateKey()
			}
			return classified
		}
		if res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return &types.ProviderError{Err: errors.New("empty embedding returned")}
		}
		if s.dim > 0 && len(res.Embedding.Values) != s.dim {
			return &types.ProviderError{
				Err: fmt.Errorf("embedding dimension %d does not match model dimension %d", len(res.Embedding.Values), s.dim),
			}
		}
		vector = res.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (s *GeminiEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &types.ValidationError{Field: "texts", Reason: "must not be empty"}
	}
	for _, text := range texts {
		if err := validateEmbedInput(text, s.maxIn); err != nil {
			return nil, err
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for _, chunk := range chunkTexts(texts, s.batch) {
		chunkVectors, err := s.embedBatchChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, chunkVectors...)
	}
	return vectors, nil
}

func (s *GeminiEmbeddingService) embedBatchChunk(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var vectors [][]float32
	err := withRetry(ctx, s.retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		em := s.embeddingModel()
		b := em.NewBatch()
		for _, text := range texts {
			b = b.AddContent(genai.Text(text))
		}
		res, err := em.BatchEmbedContents(callCtx, b)
		if err != nil {
			classified := classifyGeminiError(err)
			if types.IsTransient(classified) {
				s.rotateKey()
			}
			return classified
		}
		if len(res.Embeddings) != len(texts) {
			return &types.ProviderError{
				Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings)),
			}
		}
		vectors = make([][]float32, len(res.Embeddings))
		for i, embedding := range res.Embeddings {
			if s.dim > 0 && len(embedding.Values) != s.dim {
				return &types.ProviderError{
					Err: fmt.Errorf("embedding dimension %d does not match model dimension %d", len(embedding.Values), s.dim),
				}
			}
			vectors[i] = embedding.Values
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (s *GeminiEmbeddingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429, apiErr.Code == 408, apiErr.Code >= 500:
			return &types.ProviderError{Transient: true, Err: err}
		default:
			return &types.ProviderError{Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.ProviderError{Transient: true, Err: err}
	}
	return &types.ProviderError{Err: err}
}
