package service

import (
	"context"
	"errors"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/generation"
	"ragbot/internal/logger"
)

// Retriever returns the passages most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.SearchResult, error)
}

// PromptBuilder renders retrieved passages and the question into one prompt.
type PromptBuilder interface {
	Build(results []domain.SearchResult, question string) (string, error)
}

// RAGService answers questions by retrieval, prompt assembly and generation.
// It holds no mutable state and may be called from many goroutines.
type RAGService struct {
	retriever Retriever
	prompts   PromptBuilder
	generator generation.Generator
	log       *logger.Logger
}

// NewRAGService wires the answering pipeline.
func NewRAGService(retriever Retriever, prompts PromptBuilder, generator generation.Generator, log *logger.Logger) (*RAGService, error) {
	switch {
	case retriever == nil:
		return nil, errors.New("service: retriever must not be nil")
	case prompts == nil:
		return nil, errors.New("service: prompt builder must not be nil")
	case generator == nil:
		return nil, errors.New("service: generator must not be nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RAGService{retriever: retriever, prompts: prompts, generator: generator, log: log.WithComponent("answer")}, nil
}

// Answer runs retrieve, build and generate for one question. The completion is returned
// unmodified; any failure is carried in Result.Err.
func (s *RAGService) Answer(ctx context.Context, question string) domain.Result {
	start := time.Now()
	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		s.log.Error("retrieval failed", logger.Err(err))
		return domain.Result{Err: err}
	}
	prompt, err := s.prompts.Build(results, question)
	if err != nil {
		s.log.Error("prompt failed", logger.Err(err))
		return domain.Result{Err: err}
	}
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.log.Error("generation failed", logger.F("generator", s.generator.Name()), logger.Err(err))
		return domain.Result{Err: err}
	}
	s.log.Debug("answered", logger.Count(len(results)), logger.Duration(time.Since(start)))
	return domain.Result{Text: text}
}
