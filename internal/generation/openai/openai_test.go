package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragbot/internal/domain"
	"ragbot/internal/generation"
)

const testKeyEnv = "RAGBOT_TEST_OPENAI_GEN_KEY"

func newTestGenerator(t *testing.T, url string) *Generator {
	t.Helper()
	t.Setenv(testKeyEnv, "test-key")
	g, err := New(Config{BaseURL: url, APIKeyEnv: testKeyEnv, Model: "gpt-4o-mini", Params: generation.DefaultParams()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.MaxTokens != 512 {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "the prompt" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Every six months."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	got, err := newTestGenerator(t, srv.URL).Generate(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Every six months." {
		t.Errorf("Generate() = %q", got)
	}
}

func TestGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"error":{"message":"upstream down","type":"server_error"}}`},
		{"no choices", http.StatusOK, `{"id":"x","choices":[]}`},
		{"blank content", http.StatusOK, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":" "}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestGenerator(t, srv.URL).Generate(context.Background(), "p")
			if !errors.Is(err, domain.ErrGeneration) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	if _, err := New(Config{APIKeyEnv: testKeyEnv, Model: "m"}); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("missing key: expected ConfigError, got %v", err)
	}
	t.Setenv(testKeyEnv, "k")
	if _, err := New(Config{APIKeyEnv: testKeyEnv}); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("missing model: expected ConfigError, got %v", err)
	}
}
