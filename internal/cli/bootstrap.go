package cli

import (
	"context"
	"fmt"
	"time"

	"ragbot/internal/chunker"
	"ragbot/internal/config"
	"ragbot/internal/dispatch"
	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	hfembed "ragbot/internal/embedding/huggingface"
	"ragbot/internal/embedding/openai"
	"ragbot/internal/embedding/tfidf"
	"ragbot/internal/generation"
	"ragbot/internal/generation/huggingface"
	genopenai "ragbot/internal/generation/openai"
	"ragbot/internal/loader"
	"ragbot/internal/logger"
	"ragbot/internal/prompt"
	"ragbot/internal/reports"
	"ragbot/internal/retriever"
	"ragbot/internal/service"
	"ragbot/internal/summarizer"
	"ragbot/internal/vectorstore"
	"ragbot/internal/vectorstore/memory"
	"ragbot/internal/vectorstore/qdrant"
)

// app is everything a command needs once the knowledge base is built.
type app struct {
	cfg        *config.AppConfig
	log        *logger.Logger
	kb         *service.KnowledgeBase
	reports    *reports.DirStore
	dispatcher *dispatch.Dispatcher
}

func (a *app) Close() error {
	return a.reports.Close()
}

// loadConfig resolves the config file, env overrides and the --verbose flag.
func loadConfig() (*config.AppConfig, *logger.Logger, error) {
	cfg, path, err := config.Resolve(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	log := logger.New("ragbot", cfg.Log.Verbose)
	if path == "" {
		log.Debug("using built-in defaults")
	} else {
		log.Debug("loaded config", logger.F("path", path))
	}
	return cfg, log, nil
}

// buildApp loads the document, builds the knowledge base and wires the dispatcher.
// Any failure here aborts startup.
func buildApp(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*app, error) {
	doc, err := loader.Load(cfg.Document.Path)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	build, err := newIndexBuilder(cfg)
	if err != nil {
		return nil, err
	}
	sum, err := newSummarizer(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}

	kb, err := service.BuildKnowledgeBase(ctx, doc, service.Ingestion{
		Chunker:          ch,
		Embedder:         emb,
		Build:            build,
		Summarizer:       sum,
		SummarySentences: cfg.Summarizer.MaxSentences,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	r, err := retriever.New(kb.Embedder, kb.Index, cfg.Retriever.K)
	if err != nil {
		return nil, err
	}
	rag, err := service.NewRAGService(r, prompt.New(cfg.Subject), gen, log)
	if err != nil {
		return nil, err
	}
	store, err := reports.NewDirStore(cfg.Reports.Dir, cfg.Reports.PublicBaseURL, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		log:        log,
		kb:         kb,
		reports:    store,
		dispatcher: dispatch.New(cfg.Subject, rag, store, log),
	}, nil
}

func newEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, domain.NewConfigError("embedder.openai", "section missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:     o.BaseURL,
			APIKeyEnv:   o.APIKeyEnv,
			Model:       o.Model,
			Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize:   o.BatchSize,
			Concurrency: o.Concurrency,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "huggingface":
		h := cfg.Embedder.HuggingFace
		if h == nil {
			return nil, domain.NewConfigError("embedder.huggingface", "section missing")
		}
		emb, err := hfembed.New(hfembed.Config{
			BaseURL:     h.BaseURL,
			EndpointURL: h.EndpointURL,
			Model:       h.Model,
			APIKeyEnv:   h.APIKeyEnv,
			Timeout:     time.Duration(h.TimeoutSecs) * time.Second,
			BatchSize:   h.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		return emb, nil
	default:
		return nil, domain.NewConfigError("embedder.type", "unknown embedder "+cfg.Embedder.Type)
	}
}

func newIndexBuilder(cfg *config.AppConfig) (vectorstore.BuildFunc, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.Builder(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, domain.NewConfigError("vector_store.qdrant", "section missing")
		}
		return qdrant.Builder(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, domain.NewConfigError("vector_store.type", "unknown vector store "+cfg.VectorStore.Type)
	}
}

func newSummarizer(cfg *config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, domain.NewConfigError("summarizer.type", "unknown summarizer "+cfg.Summarizer.Type)
	}
}

func newGenerator(cfg *config.AppConfig) (generation.Generator, error) {
	g := cfg.Generator
	params := generation.Params{
		MaxNewTokens:      g.MaxNewTokens,
		Temperature:       g.Temperature,
		DoSample:          g.DoSample,
		RepetitionPenalty: g.RepetitionPenalty,
	}
	timeout := time.Duration(g.TimeoutSecs) * time.Second
	switch g.Type {
	case "huggingface", "":
		gen, err := huggingface.New(huggingface.Config{
			BaseURL:     g.BaseURL,
			EndpointURL: g.EndpointURL,
			Model:       g.Model,
			APIKeyEnv:   g.APIKeyEnv,
			Timeout:     timeout,
			Params:      params,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	case "openai":
		gen, err := genopenai.New(genopenai.Config{
			BaseURL:   g.BaseURL,
			APIKeyEnv: g.APIKeyEnv,
			Model:     g.Model,
			Timeout:   timeout,
			Params:    params,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, domain.NewConfigError("generator.type", "unknown generator "+g.Type)
	}
}
