// Package huggingface embeds text with a sentence-transformers model served by
// the Hugging Face feature-extraction task.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ragbot/internal/domain"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "sentence-transformers/all-MiniLM-L6-v2"
)

// Config configures the feature-extraction client.
type Config struct {
	// BaseURL of the hosted inference API; requests go to
	// {BaseURL}/pipeline/feature-extraction/{Model}.
	BaseURL string
	// EndpointURL, when set, is a dedicated endpoint that receives requests directly.
	EndpointURL string
	Model       string
	APIKeyEnv   string
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
}

// Embedder implements embedding.Embedder over the feature-extraction task.
type Embedder struct {
	url         string
	token       string
	batchSize   int
	concurrency int
	client      *http.Client
	dimension   atomic.Int64
}

type request struct {
	Inputs  []string `json:"inputs"`
	Options options  `json:"options"`
}

type options struct {
	WaitForModel bool `json:"wait_for_model"`
}

// New creates an embedder. The token is optional for local endpoints.
func New(cfg Config) (*Embedder, error) {
	url := cfg.EndpointURL
	if url == "" {
		model := cfg.Model
		if model == "" {
			model = DefaultModel
		}
		base := cfg.BaseURL
		if base == "" {
			base = DefaultBaseURL
		}
		url = strings.TrimRight(base, "/") + "/pipeline/feature-extraction/" + model
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "HUGGINGFACEHUB_API_TOKEN"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Embedder{
		url:         url,
		token:       os.Getenv(cfg.APIKeyEnv),
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		client:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (e *Embedder) Name() string { return "huggingface" }

// URL returns the endpoint requests are sent to.
func (e *Embedder) URL() string { return e.url }

// Prepare is a no-op; the model is fixed server-side.
func (e *Embedder) Prepare(context.Context, []string) error { return nil }

// Dimension returns the vector size, or 0 before the first response.
func (e *Embedder) Dimension() int { return int(e.dimension.Load()) }

// Embed returns the sentence embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in batches, output order matching input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(texts); start += e.batchSize {
		start := start
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float64, error) {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, domain.NewEmbeddingUnavailable("huggingface", fmt.Sprintf("cannot embed empty text at position %d", i), nil)
		}
	}
	body, err := json.Marshal(request{Inputs: texts, Options: options{WaitForModel: true}})
	if err != nil {
		return nil, domain.NewEmbeddingUnavailable("huggingface", "failed to marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewEmbeddingUnavailable("huggingface", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			msg = "request timed out"
		}
		return nil, domain.NewEmbeddingUnavailable("huggingface", msg, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewEmbeddingUnavailable("huggingface", "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		de := domain.NewEmbeddingUnavailable("huggingface", errorMessage(payload, resp.StatusCode), nil)
		de.StatusCode = resp.StatusCode
		return nil, de
	}

	vecs, err := decode(payload)
	if err != nil {
		return nil, domain.NewEmbeddingUnavailable("huggingface", "failed to decode response", err)
	}
	if len(vecs) != len(texts) {
		return nil, domain.NewEmbeddingUnavailable("huggingface", fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vecs)), nil)
	}
	for _, v := range vecs {
		if len(v) == 0 {
			return nil, domain.NewEmbeddingUnavailable("huggingface", "empty embedding in response", nil)
		}
		if err := e.checkDimension(len(v)); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

// decode accepts pooled sentence vectors ([][]float) and mean-pools
// token-level output ([][][]float) from models without a pooling layer.
func decode(payload []byte) ([][]float64, error) {
	var pooled [][]float64
	if err := json.Unmarshal(payload, &pooled); err == nil {
		return pooled, nil
	}
	var tokens [][][]float64
	if err := json.Unmarshal(payload, &tokens); err != nil {
		return nil, err
	}
	out := make([][]float64, len(tokens))
	for i, seq := range tokens {
		out[i] = meanPool(seq)
	}
	return out, nil
}

func meanPool(seq [][]float64) []float64 {
	if len(seq) == 0 {
		return nil
	}
	sum := make([]float64, len(seq[0]))
	for _, tok := range seq {
		for j := range sum {
			if j < len(tok) {
				sum[j] += tok[j]
			}
		}
	}
	for j := range sum {
		sum[j] /= float64(len(seq))
	}
	return sum
}

func (e *Embedder) checkDimension(n int) error {
	if e.dimension.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if have := e.dimension.Load(); have != int64(n) {
		return domain.NewEmbeddingUnavailable("huggingface", fmt.Sprintf("dimension changed from %d to %d", have, n), nil)
	}
	return nil
}

func errorMessage(payload []byte, status int) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
