package service

import (
	"context"
	"fmt"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/logger"
	"ragbot/internal/vectorstore"
)

// KnowledgeBase is the immutable result of indexing the reference document.
// It is built once before serving and shared by pointer.
type KnowledgeBase struct {
	Document domain.Document
	Chunks   int
	Index    vectorstore.Index
	Embedder embedding.Embedder
	Summary  string
	BuiltIn  time.Duration
}

// Ingestion wires the components used to build a KnowledgeBase.
type Ingestion struct {
	Chunker          domain.Chunker
	Embedder         embedding.Embedder
	Build            vectorstore.BuildFunc
	Summarizer       domain.Summarizer // optional
	SummarySentences int
	Logger           *logger.Logger
}

// BuildKnowledgeBase chunks doc, prepares the embedder on the chunk corpus, embeds every
// chunk and builds the vector index. Any failure aborts the build.
func BuildKnowledgeBase(ctx context.Context, doc domain.Document, in Ingestion) (*KnowledgeBase, error) {
	log := in.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("ingest").With(logger.F("document", doc.Path))
	start := time.Now()

	chunks, err := in.Chunker.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", doc.Path, err)
	}
	if len(chunks) == 0 {
		return nil, &domain.Error{Type: domain.ErrTypeDocument, Component: "ingest", Message: doc.Path + " produced no chunks"}
	}
	log.Debug("chunked document", logger.Count(len(chunks)))

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	if err := in.Embedder.Prepare(ctx, texts); err != nil {
		return nil, fmt.Errorf("preparing %s embedder: %w", in.Embedder.Name(), err)
	}
	vectors, err := in.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	index, err := in.Build(ctx, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	kb := &KnowledgeBase{
		Document: doc,
		Chunks:   len(chunks),
		Index:    index,
		Embedder: in.Embedder,
	}
	if in.Summarizer != nil {
		summary, err := in.Summarizer.Summarize(doc.Content, in.SummarySentences)
		if err != nil {
			// the summary is informational only
			log.Warn("summary failed", logger.Err(err))
		}
		kb.Summary = summary
	}
	kb.BuiltIn = time.Since(start)
	log.Info("knowledge base ready",
		logger.Count(kb.Chunks),
		logger.F("embedder", in.Embedder.Name()),
		logger.Duration(kb.BuiltIn))
	return kb, nil
}
