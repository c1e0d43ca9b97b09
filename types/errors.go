package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document does not exist in the document store.
var ErrNotFound = errors.New("document not found")

// ValidationError rejects bad input before any store operation is attempted.
// It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError wraps a failure from the embedding provider. Transient errors
// (rate limit, timeout, 5xx) are eligible for bounded retry; permanent errors
// (bad input, auth) are surfaced immediately.
type ProviderError struct {
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("embedding provider error (%s): %v", kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StoreTimeoutError marks a document store or vector index call that exceeded
// its deadline. It is retryable under the same bounded policy as transient
// provider errors.
type StoreTimeoutError struct {
	Op  string
	Err error
}

func (e *StoreTimeoutError) Error() string {
	return fmt.Sprintf("store timeout during %s: %v", e.Op, e.Err)
}

func (e *StoreTimeoutError) Unwrap() error { return e.Err }

// StorageError is a document store or vector index failure that survived the
// retry budget. During StoreDocument it triggers compensation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConsistencyError means the compensating delete of StoreDocument itself
// failed: a document without a finalized embedding may remain in the document
// store. Terminal; requires manual reconciliation and is never auto-retried.
type ConsistencyError struct {
	DocumentID  string
	EmbeddingID string
	StoreErr    error // the failure that triggered compensation
	RollbackErr error // the failure of the compensating delete
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error for document %s: rollback failed (%v) after %v",
		e.DocumentID, e.RollbackErr, e.StoreErr)
}

func (e *ConsistencyError) Unwrap() error { return e.RollbackErr }

// PartialDeleteError means the vector delete succeeded but the document store
// delete failed: the document is already invisible to search but still
// fetchable by id. Re-issuing the delete is safe because both deletes are
// idempotent.
type PartialDeleteError struct {
	DocumentID  string
	EmbeddingID string
	Err         error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("partial delete of document %s: vector removed, document store delete failed: %v",
		e.DocumentID, e.Err)
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }

// IsNotFound reports whether err indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err is eligible for bounded retry.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	var ste *StoreTimeoutError
	return errors.As(err, &ste)
}
