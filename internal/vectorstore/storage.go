package vectorstore

import (
	"context"
	"errors"

	"ragchat/internal/domain"
)

var (
	// ErrStoreNotFound is reported when querying a store that was never built.
	ErrStoreNotFound = errors.New("vector store does not exist")
	// ErrEmbeddingFailed wraps embedder failures.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
	// ErrInvalidQuery is reported for blank queries or unusable search options.
	ErrInvalidQuery = errors.New("invalid query")
)

// Storage persists (chunk, vector) pairs per store ID and supports similarity search.
type Storage interface {
	// Exists reports whether a store with this ID has been persisted.
	Exists(ctx context.Context, storeID string) (bool, error)
	// Create persists every chunk with its vector under a new store ID.
	Create(ctx context.Context, storeID string, chunks []domain.Chunk, vectors [][]float32) error
	// Search returns at most topK entries ordered by decreasing similarity.
	Search(ctx context.Context, storeID string, vector []float32, topK int) ([]domain.SearchResult, error)
	// Delete removes a store and everything in it. Deleting a missing store is not an error.
	Delete(ctx context.Context, storeID string) error
}
