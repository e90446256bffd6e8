package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"ragbot/internal/domain"
	"ragbot/internal/generation"
)

// Config configures the OpenAI-compatible chat completion generator.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	Params    generation.Params
}

// Generator sends the prompt as a single user message to /chat/completions.
type Generator struct {
	api    *goopenai.Client
	model  string
	params generation.Params
}

// New creates a chat completion generator.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, domain.NewConfigError("generator.api_key_env", fmt.Sprintf("missing API key in env %s", cfg.APIKeyEnv))
	}
	if cfg.Model == "" {
		return nil, domain.NewConfigError("generator.model", "model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Generator{api: goopenai.NewClientWithConfig(apiCfg), model: cfg.Model, params: cfg.Params}, nil
}

func (g *Generator) Name() string { return "openai" }

// Generate returns the first choice's message content.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.params.MaxNewTokens,
		Temperature: float32(g.params.Temperature),
	}
	if !g.params.DoSample {
		// greedy decoding; a literal 0 would be dropped by omitempty and mean 1
		req.Temperature = math.SmallestNonzeroFloat32
	}
	// chat APIs expose an additive frequency penalty instead of a multiplicative repetition penalty
	if g.params.RepetitionPenalty > 1 {
		req.FrequencyPenalty = float32(g.params.RepetitionPenalty - 1)
	}

	resp, err := g.api.CreateChatCompletion(ctx, req)
	if err != nil {
		e := domain.NewGenerationError("openai", "chat completion failed", err)
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			e.StatusCode = apiErr.HTTPStatusCode
		}
		return "", e
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewGenerationError("openai", "no choices returned", nil)
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", domain.NewGenerationError("openai", "model returned empty text", nil)
	}
	return text, nil
}
