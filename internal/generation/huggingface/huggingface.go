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
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/generation"
)

const DefaultBaseURL = "https://api-inference.huggingface.co"

// Config configures the text-generation inference client.
type Config struct {
	// BaseURL of the hosted inference API; requests go to {BaseURL}/models/{Model}.
	BaseURL string
	// EndpointURL, when set, is a dedicated endpoint that receives requests directly.
	EndpointURL string
	Model       string
	APIKeyEnv   string
	Timeout     time.Duration
	Params      generation.Params
}

// Generator calls the Hugging Face text-generation task over REST.
type Generator struct {
	url    string
	token  string
	params generation.Params
	client *http.Client
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	MaxNewTokens      int     `json:"max_new_tokens,omitempty"`
	DoSample          bool    `json:"do_sample"`
	Temperature       float64 `json:"temperature,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
	ReturnFullText    bool    `json:"return_full_text"`
}

type generated struct {
	GeneratedText string `json:"generated_text"`
}

// New creates a generator. The token is optional for local endpoints.
func New(cfg Config) (*Generator, error) {
	url := cfg.EndpointURL
	if url == "" {
		if cfg.Model == "" {
			return nil, domain.NewConfigError("generator.model", "model or endpoint_url is required")
		}
		base := cfg.BaseURL
		if base == "" {
			base = DefaultBaseURL
		}
		url = strings.TrimRight(base, "/") + "/models/" + cfg.Model
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "HUGGINGFACEHUB_API_TOKEN"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Generator{
		url:    url,
		token:  os.Getenv(cfg.APIKeyEnv),
		params: cfg.Params,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (g *Generator) Name() string { return "huggingface" }

// URL returns the endpoint requests are sent to.
func (g *Generator) URL() string { return g.url }

// Generate posts the prompt and returns only the newly generated text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(request{
		Inputs: prompt,
		Parameters: parameters{
			MaxNewTokens:      g.params.MaxNewTokens,
			DoSample:          g.params.DoSample,
			Temperature:       g.params.Temperature,
			RepetitionPenalty: g.params.RepetitionPenalty,
		},
	})
	if err != nil {
		return "", domain.NewGenerationError("huggingface", "failed to marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewGenerationError("huggingface", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			msg = "request timed out"
		}
		return "", domain.NewGenerationError("huggingface", msg, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewGenerationError("huggingface", "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		e := domain.NewGenerationError("huggingface", errorMessage(payload, resp.StatusCode), nil)
		e.StatusCode = resp.StatusCode
		return "", e
	}

	text, err := decode(payload)
	if err != nil {
		return "", domain.NewGenerationError("huggingface", "failed to decode response", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.NewGenerationError("huggingface", "model returned empty text", nil)
	}
	return text, nil
}

// decode accepts both the hosted API shape ([{...}]) and the dedicated endpoint shape ({...}).
func decode(payload []byte) (string, error) {
	var list []generated
	if err := json.Unmarshal(payload, &list); err == nil {
		if len(list) == 0 {
			return "", errors.New("empty generation list")
		}
		return list[0].GeneratedText, nil
	}
	var single generated
	if err := json.Unmarshal(payload, &single); err != nil {
		return "", err
	}
	return single.GeneratedText, nil
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
