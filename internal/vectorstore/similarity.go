package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"ragbot/internal/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is the
// zero vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Norm returns the Euclidean length of v.
func Norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// SortResults orders results by descending score, then ascending chunk index.
func SortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
}

// ValidatePairs checks that every chunk has a vector of the same dimension.
// It returns that dimension.
func ValidatePairs(chunks []domain.Chunk, vectors [][]float64) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, &domain.Error{Type: domain.ErrTypeIndex, Component: "vectorstore",
			Message: fmt.Sprintf("chunks and vectors length mismatch (%d != %d)", len(chunks), len(vectors))}
	}
	if len(chunks) == 0 {
		return 0, &domain.Error{Type: domain.ErrTypeIndex, Component: "vectorstore", Message: "no chunks to index"}
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, &domain.Error{Type: domain.ErrTypeIndex, Component: "vectorstore", Message: "invalid dimension 0"}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, &domain.Error{Type: domain.ErrTypeIndex, Component: "vectorstore",
				Message: fmt.Sprintf("vector %d has dimension %d, want %d", i, len(v), dim)}
		}
	}
	return dim, nil
}
