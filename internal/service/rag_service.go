package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"faqrag/internal/completion"
	"faqrag/internal/domain"
	"faqrag/internal/metrics"
)

// ErrNoResults is returned by Ask when retrieval finds nothing to answer from.
var ErrNoResults = errors.New("no relevant FAQ entries found")

// Defaults fill in search options the caller leaves unset.
type Defaults struct {
	Filter map[string]string
	Boost  map[string]float64
	Limit  int
}

// docCounter is implemented by providers that can report what they actually
// hold, which may differ from what was sent to Fit.
type docCounter interface {
	DocCount() (uint64, error)
}

// Option customises the service.
type Option func(*RAGServiceImpl)

// WithMetrics records searches and answer streams on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RAGServiceImpl) { s.metrics = m }
}

// RAGServiceImpl wires document loading, retrieval, prompt assembly and answer
// generation together.
type RAGServiceImpl struct {
	source    domain.DocumentSource
	searcher  domain.Searcher
	prompts   domain.PromptBuilder
	completer domain.Completer
	defaults  Defaults
	metrics   *metrics.Metrics
	log       *zap.Logger
	loads     singleflight.Group
}

func NewRAGService(source domain.DocumentSource, searcher domain.Searcher, prompts domain.PromptBuilder, completer domain.Completer, defaults Defaults, log *zap.Logger, opts ...Option) *RAGServiceImpl {
	if completer == nil {
		completer = completion.None{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &RAGServiceImpl{
		source:    source,
		searcher:  searcher,
		prompts:   prompts,
		completer: completer,
		defaults:  defaults,
		log:       log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load fetches the corpus and fits the searcher with it. Concurrent calls share
// one load and its result. A caller whose ctx ends stops waiting, but the shared
// load runs to completion for the others.
func (s *RAGServiceImpl) Load(ctx context.Context) (string, error) {
	ch := s.loads.DoChan("load", func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.log.Debug("load coalesced")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *RAGServiceImpl) load(ctx context.Context) (string, error) {
	start := time.Now()
	docs, err := s.source.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load documents: %w", err)
	}
	if err := s.searcher.Fit(ctx, docs); err != nil {
		return "", fmt.Errorf("index documents with %s: %w", s.searcher.Name(), err)
	}
	s.metrics.SetIndexed(len(docs))

	courses := make(map[string]struct{})
	for _, d := range docs {
		if c, ok := d["course"]; ok {
			courses[c] = struct{}{}
		}
	}
	fields := []zap.Field{
		zap.String("provider", s.searcher.Name()),
		zap.Int("documents", len(docs)),
		zap.Int("courses", len(courses)),
		zap.Duration("took", time.Since(start)),
	}
	if c, ok := s.searcher.(docCounter); ok {
		if n, err := c.DocCount(); err != nil {
			s.log.Warn("count indexed documents", zap.Error(err))
		} else {
			fields = append(fields, zap.Uint64("indexed", n))
		}
	}
	s.log.Info("corpus indexed", fields...)
	return fmt.Sprintf("Indexed %d FAQ entries from %d courses", len(docs), len(courses)), nil
}

// Search runs query against the searcher. A nil Filter or Boost and a
// non-positive Limit take the configured defaults; an empty non-nil Filter
// searches every course.
func (s *RAGServiceImpl) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Document, error) {
	opts = s.withDefaults(opts)
	start := time.Now()
	docs, err := s.searcher.Search(ctx, query, opts)
	took := time.Since(start)
	s.metrics.ObserveSearch(s.searcher.Name(), took, len(docs), err)
	if err != nil {
		s.log.Error("search failed", zap.String("provider", s.searcher.Name()), zap.Error(err))
		return nil, fmt.Errorf("search: %w", err)
	}
	s.log.Debug("search",
		zap.String("query", query),
		zap.Any("filter", opts.Filter),
		zap.Int("limit", opts.Limit),
		zap.Int("results", len(docs)),
		zap.Duration("took", took),
	)
	return docs, nil
}

func (s *RAGServiceImpl) withDefaults(opts domain.SearchOptions) domain.SearchOptions {
	if opts.Filter == nil && s.defaults.Filter != nil {
		opts.Filter = maps.Clone(s.defaults.Filter)
	}
	if opts.Boost == nil && s.defaults.Boost != nil {
		opts.Boost = maps.Clone(s.defaults.Boost)
	}
	if opts.Limit <= 0 {
		opts.Limit = s.defaults.Limit
	}
	return opts
}

// Ask retrieves context for query, builds the prompt and starts the answer stream.
// It returns ErrNoResults when nothing matched.
func (s *RAGServiceImpl) Ask(ctx context.Context, query string, opts domain.SearchOptions) (*domain.Answer, error) {
	docs, err := s.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoResults
	}
	prompt := s.prompts.Build(query, docs)
	chunks, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.metrics.CompletionFailed()
		s.log.Error("completion failed", zap.String("completer", s.completer.Name()), zap.Error(err))
		return nil, fmt.Errorf("complete with %s: %w", s.completer.Name(), err)
	}
	return &domain.Answer{
		Query:     query,
		Documents: docs,
		Prompt:    prompt,
		Chunks:    s.observe(chunks),
	}, nil
}

func (s *RAGServiceImpl) observe(chunks iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for chunk, err := range chunks {
			if err != nil {
				if !errors.Is(err, completion.ErrStreamConsumed) {
					s.metrics.CompletionFailed()
					s.log.Warn("answer stream failed", zap.Error(err))
				}
				yield("", err)
				return
			}
			s.metrics.AnswerChunk()
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
