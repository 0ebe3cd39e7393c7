// Package app assembles the RAG service from configuration. Both binaries share it.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"faqrag/internal/completion"
	"faqrag/internal/completion/openai"
	"faqrag/internal/config"
	"faqrag/internal/domain"
	"faqrag/internal/metrics"
	"faqrag/internal/prompt"
	"faqrag/internal/searcher"
	"faqrag/internal/service"
	"faqrag/internal/source"
	"faqrag/internal/summarizer"
)

// App bundles the service with the searcher it owns.
type App struct {
	Service  *service.RAGServiceImpl
	Searcher domain.Searcher
}

// Close releases the searcher.
func (a *App) Close() error { return a.Searcher.Close() }

// New wires source, searcher, prompt builder and completer. m may be nil.
func New(cfg *config.AppConfig, log *zap.Logger, m *metrics.Metrics) (*App, error) {
	s, err := searcher.New(cfg.Index, log)
	if err != nil {
		return nil, fmt.Errorf("searcher: %w", err)
	}
	c, err := NewCompleter(cfg.LLM, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	src := source.NewLoader(source.Config{
		URLs:    cfg.Source.URLs,
		Paths:   cfg.Source.Paths,
		Timeout: time.Duration(cfg.Source.TimeoutSecs) * time.Second,
	}, log)
	builder := prompt.NewBuilder(prompt.WithExcerpts(summarizer.NewFrequencySummarizer(), cfg.Prompt.MaxAnswerSentences))

	svc := service.NewRAGService(src, s, builder, c, Defaults(cfg.Search), log, service.WithMetrics(m))
	return &App{Service: svc, Searcher: s}, nil
}

// Defaults turns the search section of the config into service defaults. An
// empty course means no filter.
func Defaults(cfg config.SearchConfig) service.Defaults {
	d := service.Defaults{Boost: cfg.Boost, Limit: cfg.Limit}
	if cfg.Course != "" {
		d.Filter = map[string]string{"course": cfg.Course}
	}
	return d
}

// NewCompleter builds the completer named by cfg.Type.
func NewCompleter(cfg config.LLMConfig, log *zap.Logger) (domain.Completer, error) {
	switch cfg.Type {
	case "openai", "":
		c, err := openai.NewClient(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.SamplingTemperature(),
			MaxTokens:   cfg.MaxTokens,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("openai completer init failed (set llm.type: none for retrieval only): %w", err)
		}
		return c, nil
	case "none":
		return completion.None{}, nil
	default:
		return nil, fmt.Errorf("unknown llm type: %s", cfg.Type)
	}
}
