package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/tieubaoca/knowledge-be/types"
)

// Known dimensions of OpenAI embedding models.
var openaiModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbeddingService implements EmbeddingProvider on the OpenAI
// embeddings API. BaseURL may point at any OpenAI-compatible server.
type OpenAIEmbeddingService struct {
	client  *openai.Client
	model   string
	dim     int
	sem     chan struct{} // caps in-flight provider calls
	timeout time.Duration
	retry   RetryPolicy
	batch   int
	maxIn   int
}

var _ EmbeddingProvider = (*OpenAIEmbeddingService)(nil)

func NewOpenAIEmbeddingService(baseURL, apiKey string, opts EmbeddingOptions) *OpenAIEmbeddingService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return newOpenAIEmbeddingService(openai.NewClientWithConfig(config), opts)
}

func newOpenAIEmbeddingService(client *openai.Client, opts EmbeddingOptions) *OpenAIEmbeddingService {
	dim := opts.Dimension
	if dim == 0 {
		dim = openaiModelDimensions[opts.Model]
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
	return &OpenAIEmbeddingService{
		client:  client,
		model:   opts.Model,
		dim:     dim,
		sem:     make(chan struct{}, maxConcurrent),
		timeout: timeout,
		retry:   retry,
		batch:   batch,
		maxIn:   opts.MaxInputChars,
	}
}

func (s *OpenAIEmbeddingService) Dimension() int { return s.dim }

func (s *OpenAIEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateEmbedInput(text, s.maxIn); err != nil {
		return nil, err
	}
	vectors, err := s.embedChunk(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *OpenAIEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &types.ValidationError{Field: "texts", Reason: "must not be empty"}
	}
	for _, text := range texts {
		if err := validateEmbedInput(text, s.maxIn); err != nil {
			return nil, err
		}
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(s.sem))

	offset := 0
	for _, chunk := range chunkTexts(texts, s.batch) {
		start := offset
		chunk := chunk
		offset += len(chunk)
		g.Go(func() error {
			chunkVectors, err := s.embedChunk(gctx, chunk)
			if err != nil {
				return err
			}
			copy(vectors[start:], chunkVectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedChunk issues one provider call under the semaphore, with a per-call
// timeout and bounded retry on transient failures.
func (s *OpenAIEmbeddingService) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
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

		resp, err := s.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(s.model),
		})
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(resp.Data) != len(texts) {
			return &types.ProviderError{
				Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
			}
		}
		vectors = make([][]float32, len(resp.Data))
		for _, item := range resp.Data {
			if s.dim > 0 && len(item.Embedding) != s.dim {
				return &types.ProviderError{
					Err: fmt.Errorf("embedding dimension %d does not match model dimension %d", len(item.Embedding), s.dim),
				}
			}
			vectors[item.Index] = item.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// classifyOpenAIError sorts provider failures into transient (retryable) and
// permanent. Rate limits, timeouts, and 5xx are transient; auth and bad
// requests are permanent. Plain network errors are treated as transient.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429,
			apiErr.HTTPStatusCode == 408,
			apiErr.HTTPStatusCode >= 500:
			return &types.ProviderError{Transient: true, Err: err}
		default:
			return &types.ProviderError{Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.ProviderError{Transient: true, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &types.ProviderError{Transient: true, Err: err}
	}
	return &types.ProviderError{Err: err}
}
