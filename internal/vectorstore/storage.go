package vectorstore

import (
	"context"

	"ragbot/internal/domain"
)

// Index is a read-only similarity index over chunk vectors. It is built once
// and Search must be safe for concurrent callers.
type Index interface {
	// Search returns min(k, Len()) chunks ordered by non-increasing similarity,
	// ties broken by chunk index (earlier chunk first).
	Search(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error)
	Len() int
}

// BuildFunc builds an Index from parallel chunk and vector slices.
type BuildFunc func(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) (Index, error)
