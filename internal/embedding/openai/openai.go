package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"ragbot/internal/domain"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	api         *goopenai.Client
	model       string
	batchSize   int
	concurrency int
	dimension   atomic.Int64
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, domain.NewConfigError("embedder.openai.api_key_env", fmt.Sprintf("missing API key in env %s", cfg.APIKeyEnv))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:         goopenai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Prepare is not required for remote embedding; the dimension is fixed by the first response.
func (c *Client) Prepare(context.Context, []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors, or 0 before the first call.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in batches with a bounded number of requests in flight.
// The output order matches the input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		start := start
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embed(gctx, texts[start:end])
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

func (c *Client) embed(ctx context.Context, texts []string) ([][]float64, error) {
	for i, t := range texts {
		if t == "" {
			return nil, domain.NewEmbeddingUnavailable("openai", fmt.Sprintf("cannot embed empty text at position %d", i), nil)
		}
	}
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		e := domain.NewEmbeddingUnavailable("openai", "embeddings request failed", err)
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			e.StatusCode = apiErr.HTTPStatusCode
		}
		return nil, e
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.NewEmbeddingUnavailable("openai", fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), nil)
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || len(d.Embedding) == 0 {
			return nil, domain.NewEmbeddingUnavailable("openai", "malformed embedding in response", nil)
		}
		v := make([]float64, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float64(d.Embedding[i])
		}
		if err := c.checkDimension(len(v)); err != nil {
			return nil, err
		}
		out[d.Index] = v
	}
	for i := range out {
		if out[i] == nil {
			return nil, domain.NewEmbeddingUnavailable("openai", fmt.Sprintf("no embedding returned for position %d", i), nil)
		}
	}
	return out, nil
}

func (c *Client) checkDimension(n int) error {
	if c.dimension.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if have := c.dimension.Load(); have != int64(n) {
		return domain.NewEmbeddingUnavailable("openai", fmt.Sprintf("dimension changed from %d to %d", have, n), nil)
	}
	return nil
}
