package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/tieubaoca/knowledge-be/types"
)

const DOCUMENT_CLASS = "KnowledgeDocument"

// metaPropPrefix prefixes flattened filterable metadata keys so they never
// collide with the fixed payload properties.
const metaPropPrefix = "meta_"

// WeaviateConfig configures the Weaviate-backed vector index.
type WeaviateConfig struct {
	Host      string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// WeaviateIndex implements VectorIndex on a Weaviate class with
// bring-your-own vectors (vectorizer "none") and cosine distance. The object
// id is the embedding id; the payload lives in the object properties, with
// filterable metadata flattened into meta_* properties and the full metadata
// kept as JSON for retrieval.
type WeaviateIndex struct {
	client    *weaviate.Client
	dimension int
	timeout   time.Duration
	logger    *slog.Logger
}

var _ VectorIndex = (*WeaviateIndex)(nil)

func NewWeaviateIndex(config WeaviateConfig, logger *slog.Logger) (*WeaviateIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scheme := "http"
	if strings.HasPrefix(config.Host, "https") {
		scheme = "https"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: config.APIKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WeaviateIndex{
		client:    client,
		dimension: config.Dimension,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func classObject() *models.Class {
	return &models.Class{
		Class: DOCUMENT_CLASS,
		Properties: []*models.Property{
			{Name: "docId", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "metaJson", DataType: []string{"text"}},
			{Name: "createdAt", DataType: []string{"int"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]any{
			"distance": "cosine",
		},
	}
}

func (s *WeaviateIndex) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return s.wrapErr("get schema", err)
	}
	for _, class := range schema.Classes {
		if class.Class == DOCUMENT_CLASS {
			return nil
		}
	}
	if err := s.client.Schema().ClassCreator().WithClass(classObject()).Do(ctx); err != nil {
		return s.wrapErr("create class", err)
	}
	s.logger.Info("created weaviate class", "class", DOCUMENT_CLASS, "dimension", s.dimension)
	return nil
}

func (s *WeaviateIndex) DropCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Schema().ClassDeleter().WithClassName(DOCUMENT_CLASS).Do(ctx); err != nil {
		if isNotFoundStatus(err) {
			return nil
		}
		return s.wrapErr("drop class", err)
	}
	return nil
}

func (s *WeaviateIndex) Upsert(ctx context.Context, embeddingID string, vector []float32, payload types.EmbeddingPayload) error {
	if s.dimension > 0 && len(vector) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongDimension, len(vector), s.dimension)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	properties, err := payloadProperties(payload)
	if err != nil {
		return err
	}

	// Batch object writes are put semantics in Weaviate, which gives the
	// upsert behavior a plain Creator does not.
	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(&models.Object{
		Class:      DOCUMENT_CLASS,
		ID:         strfmt.UUID(embeddingID),
		Properties: properties,
		Vector:     vector,
	}).Do(ctx)
	if err != nil {
		return s.wrapErr("upsert", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return &types.StorageError{Op: "vector upsert", Err: errors.New(obj.Result.Errors.Error[0].Message)}
		}
	}
	s.logger.Debug("upserted vector", "embedding_id", embeddingID, "document_id", payload.DocumentID)
	return nil
}

func (s *WeaviateIndex) Query(ctx context.Context, vector []float32, limit int, filter map[string]any, minScore float64) ([]VectorHit, error) {
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongDimension, len(vector), s.dimension)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields := []graphql.Field{
		{Name: "docId"},
		{Name: "title"},
		{Name: "metaJson"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}, {Name: "id"}}},
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	if minScore > 0 {
		// Weaviate certainty is cosine similarity mapped to [0, 1], the same
		// scale as VectorHit.Score.
		nearVector = nearVector.WithCertainty(float32(minScore))
	}

	getBuilder := s.client.GraphQL().Get().
		WithClassName(DOCUMENT_CLASS).
		WithFields(fields...).
		WithNearVector(nearVector)
	if limit > 0 {
		getBuilder = getBuilder.WithLimit(limit)
	}
	if where := buildMetadataFilter(filter); where != nil {
		getBuilder = getBuilder.WithWhere(where)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, s.wrapErr("query", err)
	}
	if len(result.Errors) > 0 {
		return nil, &types.StorageError{Op: "vector query", Err: errors.New(result.Errors[0].Message)}
	}

	var hits []VectorHit
	getData, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return hits, nil
	}
	data, ok := getData[DOCUMENT_CLASS].([]any)
	if !ok {
		return hits, nil
	}
	for _, item := range data {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		hit := VectorHit{
			Payload: types.EmbeddingPayload{
				DocumentID: stringProp(obj, "docId"),
				Title:      stringProp(obj, "title"),
			},
		}
		if createdAt, ok := obj["createdAt"].(float64); ok {
			hit.Payload.CreatedAt = int64(createdAt)
		}
		if metaJSON := stringProp(obj, "metaJson"); metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &hit.Payload.Metadata); err != nil {
				s.logger.Warn("failed to parse payload metadata", "document_id", hit.Payload.DocumentID, "error", err)
			}
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := additional["id"].(string); ok {
				hit.EmbeddingID = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Score = certainty
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *WeaviateIndex) Delete(ctx context.Context, embeddingID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.client.Data().Deleter().
		WithClassName(DOCUMENT_CLASS).
		WithID(embeddingID).
		Do(ctx)
	if err != nil {
		if isNotFoundStatus(err) {
			return nil
		}
		return s.wrapErr("delete", err)
	}
	return nil
}

func (s *WeaviateIndex) wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.StoreTimeoutError{Op: "vector " + op, Err: err}
	}
	return &types.StorageError{Op: "vector " + op, Err: err}
}

func isNotFoundStatus(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == 404
}

func payloadProperties(payload types.EmbeddingPayload) (map[string]any, error) {
	properties := map[string]any{
		"docId":     payload.DocumentID,
		"title":     payload.Title,
		"createdAt": payload.CreatedAt,
	}
	if len(payload.Metadata) > 0 {
		metaJSON, err := json.Marshal(payload.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload metadata: %w", err)
		}
		properties["metaJson"] = string(metaJSON)
		for key, value := range payload.Metadata {
			properties[metaPropPrefix+key] = value
		}
	}
	return properties, nil
}

func buildMetadataFilter(filter map[string]any) *filters.WhereBuilder {
	var whereFilter *filters.WhereBuilder

	appendFilter := func(next *filters.WhereBuilder) {
		if whereFilter == nil {
			whereFilter = next
		} else {
			whereFilter = filters.Where().
				WithOperator(filters.And).
				WithOperands([]*filters.WhereBuilder{whereFilter, next})
		}
	}

	for key, value := range filter {
		path := []string{metaPropPrefix + key}
		next := filters.Where().WithPath(path)
		switch v := value.(type) {
		case string:
			next = next.WithOperator(filters.Equal).WithValueString(v)
		case bool:
			next = next.WithOperator(filters.Equal).WithValueBoolean(v)
		case int:
			next = next.WithOperator(filters.Equal).WithValueInt(int64(v))
		case int64:
			next = next.WithOperator(filters.Equal).WithValueInt(v)
		case float64:
			next = next.WithOperator(filters.Equal).WithValueNumber(v)
		default:
			next = next.WithOperator(filters.Equal).WithValueString(fmt.Sprint(v))
		}
		appendFilter(next)
	}
	return whereFilter
}

func stringProp(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}
