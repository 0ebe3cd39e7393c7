package service_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"faqrag/internal/completion"
	"faqrag/internal/domain"
	"faqrag/internal/index"
	"faqrag/internal/metrics"
	"faqrag/internal/prompt"
	"faqrag/internal/searcher/keyword"
	"faqrag/internal/searcher/memory"
	"faqrag/internal/service"
)

type staticSource struct {
	docs []domain.Document
	err  error
}

func (s staticSource) Load(context.Context) ([]domain.Document, error) { return s.docs, s.err }

type recordingSearcher struct {
	domain.Searcher
	last domain.SearchOptions
	err  error
}

func (r *recordingSearcher) Search(ctx context.Context, q string, opts domain.SearchOptions) ([]domain.Document, error) {
	r.last = opts
	if r.err != nil {
		return nil, r.err
	}
	return r.Searcher.Search(ctx, q, opts)
}

type scriptedCompleter struct {
	prompt string
	chunks []string
	err    error
}

func (c *scriptedCompleter) Name() string { return "scripted" }

func (c *scriptedCompleter) Complete(_ context.Context, p string) (iter.Seq2[string, error], error) {
	c.prompt = p
	if c.err != nil {
		return nil, c.err
	}
	return completion.SingleUse(func(yield func(string, error) bool) {
		for _, ch := range c.chunks {
			if !yield(ch, nil) {
				return
			}
		}
	}), nil
}

var corpus = []domain.Document{
	{"course": "data-engineering-zoomcamp", "section": "General", "question": "Can I still join the course?", "text": "Yes, even after the start date."},
	{"course": "data-engineering-zoomcamp", "section": "Module 1", "question": "Docker compose fails", "text": "Restart the docker daemon."},
	{"course": "machine-learning-zoomcamp", "section": "General", "question": "Can I join late?", "text": "Yes, join any time."},
}

func newService(t *testing.T, c domain.Completer, opts ...service.Option) (*service.RAGServiceImpl, *recordingSearcher) {
	t.Helper()
	mem, err := memory.NewSearcher([]string{"question", "text", "section"}, []string{"course"})
	require.NoError(t, err)
	rec := &recordingSearcher{Searcher: mem}
	svc := service.NewRAGService(staticSource{docs: corpus}, rec, prompt.NewBuilder(), c, service.Defaults{
		Filter: map[string]string{"course": "data-engineering-zoomcamp"},
		Boost:  map[string]float64{"question": 3.0, "section": 0.5},
		Limit:  5,
	}, nil, opts...)
	return svc, rec
}

func TestLoadSummarises(t *testing.T) {
	m := metrics.New()
	svc, _ := newService(t, nil, service.WithMetrics(m))
	summary, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Indexed 3 FAQ entries from 2 courses", summary)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocsIndexed))
}

func TestLoadLogsProviderDocCount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bl, err := keyword.NewBleveSearcher([]string{"question", "text", "section"}, []string{"course"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bl.Close() })

	svc := service.NewRAGService(staticSource{docs: corpus}, bl, prompt.NewBuilder(), nil, service.Defaults{}, zap.New(core))
	_, err = svc.Load(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("corpus indexed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, uint64(3), fields["indexed"])
	assert.Equal(t, int64(3), fields["documents"])
}

func TestLoadSurfacesSourceError(t *testing.T) {
	mem, err := memory.NewSearcher([]string{"text"}, nil)
	require.NoError(t, err)
	boom := errors.New("connection refused")
	svc := service.NewRAGService(staticSource{err: boom}, mem, prompt.NewBuilder(), nil, service.Defaults{}, nil)
	_, err = svc.Load(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSearchAppliesDefaults(t *testing.T) {
	svc, rec := newService(t, nil)
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	docs, err := svc.Search(ctx, "can I join", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Can I still join the course?", docs[0]["question"])
	assert.Equal(t, 5, rec.last.Limit)
	assert.Equal(t, 3.0, rec.last.Boost["question"])

	// an explicit empty filter searches all courses
	docs, err = svc.Search(ctx, "can I join", domain.SearchOptions{Filter: map[string]string{}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSearchWrapsProviderError(t *testing.T) {
	svc, rec := newService(t, nil)
	rec.err = errors.New("cluster unavailable")
	_, err := svc.Search(context.Background(), "docker", domain.SearchOptions{})
	assert.ErrorIs(t, err, rec.err)
}

func TestAskStreamsAnswer(t *testing.T) {
	m := metrics.New()
	c := &scriptedCompleter{chunks: []string{"Yes, ", "you can."}}
	svc, _ := newService(t, c, service.WithMetrics(m))
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	ans, err := svc.Ask(ctx, "Can I still join?", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, ans.Documents, 1)
	assert.Equal(t, c.prompt, ans.Prompt)
	assert.Contains(t, ans.Prompt, "QUESTION: Can I still join?")
	assert.Contains(t, ans.Prompt, "Question: Can I still join the course?")

	text, err := completion.Collect(ans.Chunks)
	require.NoError(t, err)
	assert.Equal(t, "Yes, you can.", text)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnswerChunksTotal))

	_, err = completion.Collect(ans.Chunks)
	assert.ErrorIs(t, err, completion.ErrStreamConsumed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CompletionErrors))
}

func TestAskNoResults(t *testing.T) {
	c := &scriptedCompleter{}
	svc, _ := newService(t, c)
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "kubernetes operators", domain.SearchOptions{})
	assert.ErrorIs(t, err, service.ErrNoResults)
	assert.Empty(t, c.prompt)
}

func TestAskCompletionError(t *testing.T) {
	m := metrics.New()
	boom := errors.New("missing API key")
	svc, _ := newService(t, &scriptedCompleter{err: boom}, service.WithMetrics(m))
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "docker compose", domain.SearchOptions{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionErrors))
}

type countingSource struct {
	calls   atomic.Int32
	release chan struct{}
}

func (c *countingSource) Load(context.Context) ([]domain.Document, error) {
	c.calls.Add(1)
	<-c.release
	return corpus, nil
}

func TestConcurrentLoadsShareResult(t *testing.T) {
	mem, err := memory.NewSearcher([]string{"question", "text"}, []string{"course"})
	require.NoError(t, err)
	src := &countingSource{release: make(chan struct{})}
	svc := service.NewRAGService(src, mem, prompt.NewBuilder(), nil, service.Defaults{}, nil)

	var wg sync.WaitGroup
	summaries := make([]string, 4)
	for i := range summaries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summaries[i], _ = svc.Load(context.Background())
		}()
	}
	// let the goroutines pile up behind the first load before releasing it
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	for _, s := range summaries {
		assert.Equal(t, "Indexed 3 FAQ entries from 2 courses", s)
	}
}

type blockingSource struct {
	calls   atomic.Int32
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingSource) Load(ctx context.Context) ([]domain.Document, error) {
	b.calls.Add(1)
	<-b.release
	b.ctxErr <- ctx.Err()
	return corpus, ctx.Err()
}

func TestCancelledCallerDoesNotAbortSharedLoad(t *testing.T) {
	mem, err := memory.NewSearcher([]string{"question", "text"}, []string{"course"})
	require.NoError(t, err)
	src := &blockingSource{release: make(chan struct{}), ctxErr: make(chan error, 1)}
	svc := service.NewRAGService(src, mem, prompt.NewBuilder(), nil, service.Defaults{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(src.release)
	require.NoError(t, <-src.ctxErr)
	require.Eventually(t, func() bool { return mem.State() == index.Built }, time.Second, time.Millisecond)
}
