package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// Build recreates the collection with cosine distance; afterwards the index is only read.
type Storage struct {
	url        string
	apiKey     string
	collection string
	overFetch  int
	dimension  int
	count      int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	// OverFetch extra points requested per search so that equal scores at the
	// cut-off can be re-ordered by chunk index. When the last point returned
	// still ties with the k-th, the search is repeated with a doubled limit
	// until the tie ends or the whole collection has been fetched.
	OverFetch int
}

func newStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	overFetch := cfg.OverFetch
	if overFetch <= 0 {
		overFetch = 8
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "ragbot"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		overFetch:  overFetch,
		client:     &http.Client{Timeout: timeout},
	}
}

// Build drops and recreates the collection, then uploads every point.
func Build(ctx context.Context, cfg Config, chunks []domain.Chunk, vectors [][]float64) (*Storage, error) {
	dim, err := vectorstore.ValidatePairs(chunks, vectors)
	if err != nil {
		return nil, err
	}
	s := newStorage(cfg)
	s.dimension = dim
	s.count = len(chunks)

	if err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil, http.StatusNotFound); err != nil {
		return nil, err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
		return nil, err
	}

	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			// Qdrant point ids must be unsigned integers or UUIDs
			"id":     i,
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": chunks[i].DocumentID,
				"chunk_id":    chunks[i].ChunkID,
				"index":       chunks[i].Index,
				"start":       chunks[i].Start,
				"end":         chunks[i].End,
				"text":        chunks[i].Text,
			},
		}
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// Builder adapts Build to vectorstore.BuildFunc.
func Builder(cfg Config) vectorstore.BuildFunc {
	return func(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) (vectorstore.Index, error) {
		return Build(ctx, cfg, chunks, vectors)
	}
}

// Len returns the number of uploaded points.
func (s *Storage) Len() int { return s.count }

// Search queries the collection and re-applies the chunk-index tie-break locally.
func (s *Storage) Search(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, &domain.Error{Type: domain.ErrTypeIndex, Component: "qdrant",
			Message: fmt.Sprintf("query dimension %d, index dimension %d", len(vector), s.dimension)}
	}
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}
	limit := min(k+s.overFetch, s.count)
	for {
		results, err := s.search(ctx, vector, limit)
		if err != nil {
			return nil, err
		}
		vectorstore.SortResults(results)
		if k >= len(results) {
			return results, nil
		}
		// points past the limit may tie with the k-th and carry a lower index
		if len(results) < limit || limit >= s.count || results[len(results)-1].Score < results[k-1].Score {
			return results[:k], nil
		}
		limit = min(limit*2, s.count)
	}
}

func (s *Storage) search(ctx context.Context, vector []float64, limit int) ([]domain.SearchResult, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{}
		if v, ok := r.Payload["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			chunk.ChunkID = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["start"].(float64); ok {
			chunk.Start = int(v)
		}
		if v, ok := r.Payload["end"].(float64); ok {
			chunk.End = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// do sends a JSON request. Status codes >= 300 are errors unless listed in allowed.
func (s *Storage) do(ctx context.Context, method, url string, body, out any, allowed ...int) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &domain.Error{Type: domain.ErrTypeIndex, Component: "qdrant", Message: "encode request", Cause: err}
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return &domain.Error{Type: domain.ErrTypeIndex, Component: "qdrant", Message: "create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.Error{Type: domain.ErrTypeIndex, Component: "qdrant", Message: method + " " + url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		for _, code := range allowed {
			if resp.StatusCode == code {
				return nil
			}
		}
		return &domain.Error{Type: domain.ErrTypeIndex, Component: "qdrant", Message: method + " " + url, StatusCode: resp.StatusCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.Error{Type: domain.ErrTypeIndex, Component: "qdrant", Message: "decode response", Cause: err}
		}
	}
	return nil
}
