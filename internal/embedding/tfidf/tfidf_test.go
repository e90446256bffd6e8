package tfidf

import (
	"context"
	"errors"
	"math"
	"testing"

	"ragbot/internal/domain"
)

var corpus = []string{
	"The PureDrop cartridge should be replaced every six months.",
	"PureDrop filters remove lead and chlorine from tap water.",
	"Warranty claims require the original receipt.",
}

func TestEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	if err := e.Prepare(ctx, corpus); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	v1, err := e.Embed(ctx, "how often replace cartridge")
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := e.Embed(ctx, "how often replace cartridge")
	if len(v1) != e.Dimension() || len(v2) != e.Dimension() {
		t.Fatalf("dimension mismatch: %d, %d vs %d", len(v1), len(v2), e.Dimension())
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embeddings not deterministic at index %d", i)
		}
	}

	norm := 0.0
	for _, v := range v1 {
		norm += v * v
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Errorf("expected unit vector, norm=%f", math.Sqrt(norm))
	}
}

func TestEmbedder_UnknownTermsGiveZeroVector(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	if err := e.Prepare(ctx, corpus); err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(ctx, "quantum chromodynamics")
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, index %d = %f", i, x)
		}
	}
}

func TestEmbedder_Errors(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()

	if _, err := e.Embed(ctx, "anything"); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("unprepared Embed: expected EmbeddingUnavailable, got %v", err)
	}
	if err := e.Prepare(ctx, nil); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("empty corpus: expected EmbeddingUnavailable, got %v", err)
	}
	if err := e.Prepare(ctx, []string{"the and of"}); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("stopword-only corpus: expected EmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedder_Batch(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	if err := e.Prepare(ctx, corpus); err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(ctx, corpus)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != len(corpus) {
		t.Fatalf("expected %d vectors, got %d", len(corpus), len(vecs))
	}
	single, _ := e.Embed(ctx, corpus[1])
	for i := range single {
		if single[i] != vecs[1][i] {
			t.Fatalf("batch and single embedding differ at %d", i)
		}
	}
}
