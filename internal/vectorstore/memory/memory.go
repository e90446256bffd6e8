package memory

import (
	"context"
	"fmt"

	"ragbot/internal/domain"
	"ragbot/internal/vectorstore"
)

// Storage is an in-memory vector index using brute-force cosine similarity.
// It is immutable after Build, so concurrent searches need no locking.
type Storage struct {
	dimension int
	chunks    []domain.Chunk
	vectors   [][]float64
	norms     []float64
}

// Build copies the chunk/vector pairs into a new index.
func Build(_ context.Context, chunks []domain.Chunk, vectors [][]float64) (*Storage, error) {
	dim, err := vectorstore.ValidatePairs(chunks, vectors)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		dimension: dim,
		chunks:    make([]domain.Chunk, len(chunks)),
		vectors:   make([][]float64, len(vectors)),
		norms:     make([]float64, len(vectors)),
	}
	copy(s.chunks, chunks)
	for i, v := range vectors {
		s.vectors[i] = append([]float64(nil), v...)
		s.norms[i] = vectorstore.Norm(v)
	}
	return s, nil
}

// Builder adapts Build to vectorstore.BuildFunc.
func Builder() vectorstore.BuildFunc {
	return func(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) (vectorstore.Index, error) {
		return Build(ctx, chunks, vectors)
	}
}

// Len returns the number of indexed chunks.
func (s *Storage) Len() int { return len(s.chunks) }

// Dimension returns the vector dimension of the index.
func (s *Storage) Dimension() int { return s.dimension }

// Search returns the k most similar chunks. Equal scores keep insertion order.
func (s *Storage) Search(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, &domain.Error{Type: domain.ErrTypeIndex, Component: "memory",
			Message: fmt.Sprintf("query dimension %d, index dimension %d", len(vector), s.dimension)}
	}
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qnorm := vectorstore.Norm(vector)
	results := make([]domain.SearchResult, len(s.chunks))
	for i := range s.vectors {
		score := 0.0
		if qnorm > 0 && s.norms[i] > 0 {
			score = dot(s.vectors[i], vector) / (qnorm * s.norms[i])
		}
		results[i] = domain.SearchResult{Chunk: s.chunks[i], Score: score}
	}
	vectorstore.SortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k:k], nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
