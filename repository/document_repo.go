package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tieubaoca/knowledge-be/types"
)

// DocumentRepo persists knowledge base documents. All operations are
// single-document; no multi-document transactions are assumed.
type DocumentRepo interface {
	// Insert stores the document, assigning a fresh id and timestamps.
	Insert(ctx context.Context, doc *types.Document) (*types.Document, error)

	// Get returns the document or types.ErrNotFound.
	Get(ctx context.Context, id string) (*types.Document, error)

	// SetEmbeddingID finalizes the document's embedding reference, making it
	// searchable. Returns types.ErrNotFound for unknown ids.
	SetEmbeddingID(ctx context.Context, id, embeddingID string) error

	// Delete removes the document. Returns types.ErrNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}

type documentRepo struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewDocumentRepo(collection *mongo.Collection, timeout time.Duration) DocumentRepo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &documentRepo{
		collection: collection,
		timeout:    timeout,
	}
}

func (r *documentRepo) Insert(ctx context.Context, doc *types.Document) (*types.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().Unix()
	inserted := *doc
	inserted.ID = uuid.New().String()
	inserted.CreatedAt = now
	inserted.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, &inserted); err != nil {
		return nil, r.wrapErr("insert", err)
	}
	return &inserted, nil
}

func (r *documentRepo) Get(ctx context.Context, id string) (*types.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc types.Document
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, types.ErrNotFound
		}
		return nil, r.wrapErr("get", err)
	}
	return &doc, nil
}

func (r *documentRepo) SetEmbeddingID(ctx context.Context, id, embeddingID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"embedding_id": embeddingID,
			"updated_at":   time.Now().Unix(),
		}})
	if err != nil {
		return r.wrapErr("set embedding id", err)
	}
	if result.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return r.wrapErr("delete", err)
	}
	if result.DeletedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *documentRepo) wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.StoreTimeoutError{Op: "document " + op, Err: err}
	}
	return &types.StorageError{Op: "document " + op, Err: err}
}
