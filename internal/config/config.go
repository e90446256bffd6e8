package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ragbot/internal/domain"
)

// SearchPaths are tried in order when no explicit config path is given.
var SearchPaths = []string{
	"./ragbot.yaml",
	"~/.config/ragbot/config.yaml",
}

// DocumentConfig points at the single reference document.
type DocumentConfig struct {
	Path string `yaml:"path"`
}

// ChunkerConfig configures how the document is split into overlapping windows.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// HuggingFaceEmbedderConfig holds configuration for the feature-extraction embedder.
type HuggingFaceEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	EndpointURL string `yaml:"endpoint_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                     `yaml:"type"`
	OpenAI      *OpenAIEmbedderConfig      `yaml:"openai,omitempty"`
	HuggingFace *HuggingFaceEmbedderConfig `yaml:"huggingface,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrieverConfig sets how many passages feed the prompt.
type RetrieverConfig struct {
	K int `yaml:"k"`
}

// GeneratorConfig selects the generation backend and its decoding parameters.
type GeneratorConfig struct {
	Type              string  `yaml:"type"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	EndpointURL       string  `yaml:"endpoint_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxNewTokens      int     `yaml:"max_new_tokens"`
	Temperature       float64 `yaml:"temperature"`
	DoSample          bool    `yaml:"do_sample"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
}

// ReportsConfig locates the report files and the public URL they are served under.
type ReportsConfig struct {
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// ServerConfig configures the webhook listener.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Subject     string            `yaml:"subject"`
	Document    DocumentConfig    `yaml:"document"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Reports     ReportsConfig     `yaml:"reports"`
	Server      ServerConfig      `yaml:"server"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path on top of the defaults.
// If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	// fields missing from the file keep their default values
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// Resolve loads the effective configuration: the explicit path if given, otherwise the
// first existing file from SearchPaths, then RAGBOT_* environment overrides, then validation.
// The returned path is empty when only built-in defaults were used.
func Resolve(explicit string) (*AppConfig, string, error) {
	path := explicit
	if path == "" {
		path, _ = FindConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, "", domain.NewConfigError("config", fmt.Sprintf("cannot read %s: %v", path, err))
	}

	var cfg *AppConfig
	var err error
	if path == "" {
		cfg = Default()
	} else if cfg, err = Load(path); err != nil {
		return nil, "", err
	}
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, "", err
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// FindConfigFile returns the first existing file in SearchPaths.
func FindConfigFile() (string, bool) {
	for _, p := range SearchPaths {
		p = expandPath(p)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// UserConfigPath is where `ragbot config init` writes by default.
func UserConfigPath() string {
	return expandPath(SearchPaths[len(SearchPaths)-1])
}

// ApplyEnv overrides fields from RAGBOT_* variables looked up through getenv.
func ApplyEnv(cfg *AppConfig, getenv func(string) string) error {
	setters := map[string]func(string) error{
		"RAGBOT_SUBJECT":            func(v string) error { cfg.Subject = v; return nil },
		"RAGBOT_DOCUMENT_PATH":      func(v string) error { cfg.Document.Path = v; return nil },
		"RAGBOT_CHUNK_SIZE":         func(v string) error { return parseInt(v, &cfg.Chunker.Size) },
		"RAGBOT_CHUNK_OVERLAP":      func(v string) error { return parseInt(v, &cfg.Chunker.Overlap) },
		"RAGBOT_RETRIEVER_K":        func(v string) error { return parseInt(v, &cfg.Retriever.K) },
		"RAGBOT_EMBEDDER_TYPE":      func(v string) error { cfg.Embedder.Type = v; return nil },
		"RAGBOT_VECTOR_STORE_TYPE":  func(v string) error { cfg.VectorStore.Type = v; return nil },
		"RAGBOT_GENERATOR_TYPE":     func(v string) error { cfg.Generator.Type = v; return nil },
		"RAGBOT_GENERATOR_MODEL":    func(v string) error { cfg.Generator.Model = v; return nil },
		"RAGBOT_GENERATOR_BASE_URL": func(v string) error { cfg.Generator.BaseURL = v; return nil },
		"RAGBOT_REPORTS_DIR":        func(v string) error { cfg.Reports.Dir = v; return nil },
		"RAGBOT_PUBLIC_BASE_URL":    func(v string) error { cfg.Reports.PublicBaseURL = v; return nil },
		"RAGBOT_SERVER_ADDR":        func(v string) error { cfg.Server.Addr = v; return nil },
		"RAGBOT_VERBOSE":            func(v string) error { return parseBool(v, &cfg.Log.Verbose) },
	}
	for name, set := range setters {
		v := strings.TrimSpace(getenv(name))
		if v == "" {
			continue
		}
		if err := set(v); err != nil {
			return domain.NewConfigError(name, err.Error())
		}
	}
	return nil
}

// Validate checks the configuration and returns the first problem as a ConfigError.
func (c *AppConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Subject) == "":
		return domain.NewConfigError("subject", "must not be empty")
	case c.Document.Path == "":
		return domain.NewConfigError("document.path", "must not be empty")
	case c.Chunker.Size <= 0:
		return domain.NewConfigError("chunker.size", fmt.Sprintf("must be positive, got %d", c.Chunker.Size))
	case c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size:
		return domain.NewConfigError("chunker.overlap", fmt.Sprintf("must be in [0, %d), got %d", c.Chunker.Size, c.Chunker.Overlap))
	case c.Retriever.K <= 0:
		return domain.NewConfigError("retriever.k", fmt.Sprintf("must be positive, got %d", c.Retriever.K))
	case c.Generator.MaxNewTokens <= 0:
		return domain.NewConfigError("generator.max_new_tokens", "must be positive")
	case c.Generator.Temperature < 0:
		return domain.NewConfigError("generator.temperature", "must not be negative")
	case c.Reports.Dir == "":
		return domain.NewConfigError("reports.dir", "must not be empty")
	case c.Server.Addr == "":
		return domain.NewConfigError("server.addr", "must not be empty")
	}
	switch c.Embedder.Type {
	case "tfidf", "openai", "huggingface":
	default:
		return domain.NewConfigError("embedder.type", fmt.Sprintf("unknown embedder %q", c.Embedder.Type))
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return domain.NewConfigError("vector_store.qdrant.url", "required for qdrant")
		}
	default:
		return domain.NewConfigError("vector_store.type", fmt.Sprintf("unknown vector store %q", c.VectorStore.Type))
	}
	switch c.Generator.Type {
	case "huggingface":
		if c.Generator.Model == "" && c.Generator.EndpointURL == "" {
			return domain.NewConfigError("generator.model", "model or endpoint_url is required")
		}
	case "openai":
		if c.Generator.Model == "" {
			return domain.NewConfigError("generator.model", "required for openai")
		}
	default:
		return domain.NewConfigError("generator.type", fmt.Sprintf("unknown generator %q", c.Generator.Type))
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Subject:     "PureDrop Filters",
		Document:    DocumentConfig{Path: "filter.pdf"},
		Chunker:     ChunkerConfig{Size: 800, Overlap: 200},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Retriever:   RetrieverConfig{K: 4},
		Generator: GeneratorConfig{
			Type:              "huggingface",
			Model:             "HuggingFaceH4/zephyr-7b-beta",
			APIKeyEnv:         "HUGGINGFACEHUB_API_TOKEN",
			TimeoutSecs:       60,
			MaxNewTokens:      512,
			Temperature:       0.2,
			DoSample:          false,
			RepetitionPenalty: 1.03,
		},
		Reports:    ReportsConfig{Dir: "Reports", PublicBaseURL: "http://localhost:8080"},
		Server:     ServerConfig{Addr: ":8080", ShutdownTimeoutSecs: 10},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "huggingface" {
		if cfg.Embedder.HuggingFace == nil {
			cfg.Embedder.HuggingFace = &HuggingFaceEmbedderConfig{}
		}
		h := cfg.Embedder.HuggingFace
		if h.BaseURL == "" {
			h.BaseURL = "https://api-inference.huggingface.co"
		}
		if h.APIKeyEnv == "" {
			h.APIKeyEnv = "HUGGINGFACEHUB_API_TOKEN"
		}
		if h.Model == "" {
			h.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if h.TimeoutSecs == 0 {
			h.TimeoutSecs = 60
		}
		if h.BatchSize == 0 {
			h.BatchSize = 32
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragbot"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Generator.Type == "openai" && cfg.Generator.APIKeyEnv == "HUGGINGFACEHUB_API_TOKEN" {
		cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	cfg.Reports.PublicBaseURL = strings.TrimRight(cfg.Reports.PublicBaseURL, "/")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not an integer: %q", v)
	}
	*dst = n
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("not a boolean: %q", v)
	}
	*dst = b
	return nil
}
