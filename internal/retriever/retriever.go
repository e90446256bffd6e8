package retriever

import (
	"context"
	"errors"
	"fmt"

	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/vectorstore"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 4

// Retriever embeds a question and runs a plain similarity search with a fixed k.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorstore.Index
	k        int
}

// New constructs a Retriever. A non-positive k falls back to DefaultK.
func New(embedder embedding.Embedder, index vectorstore.Index, k int) (*Retriever, error) {
	if embedder == nil {
		return nil, errors.New("retriever: embedder must not be nil")
	}
	if index == nil {
		return nil, errors.New("retriever: index must not be nil")
	}
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{embedder: embedder, index: index, k: k}, nil
}

// K returns the configured result count.
func (r *Retriever) K() int { return r.k }

// Retrieve returns up to k chunks most similar to question, most similar first.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.SearchResult, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	res, err := r.index.Search(ctx, vec, r.k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return res, nil
}
