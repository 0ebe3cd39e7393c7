// Package source loads FAQ documents from URLs and local files.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"faqrag/internal/domain"
)

// Config lists the locations to load. URLs come before paths in the result.
type Config struct {
	URLs    []string
	Paths   []string
	Timeout time.Duration
}

// Loader fetches and flattens FAQ documents.
type Loader struct {
	urls   []string
	paths  []string
	client *http.Client
	log    *zap.Logger
}

// NewLoader creates a loader; a zero timeout means 30s.
func NewLoader(cfg Config, log *zap.Logger) *Loader {
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		urls:   cfg.URLs,
		paths:  cfg.Paths,
		client: &http.Client{Timeout: t},
		log:    log,
	}
}

// Load reads every configured location concurrently and concatenates the
// documents in configured order. The first failure cancels the rest.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	locations := len(l.urls) + len(l.paths)
	if locations == 0 {
		return nil, fmt.Errorf("no document sources configured")
	}
	parts := make([][]domain.Document, locations)
	g, ctx := errgroup.WithContext(ctx)
	for i, u := range l.urls {
		g.Go(func() error {
			docs, err := l.fetch(ctx, u)
			if err != nil {
				return err
			}
			parts[i] = docs
			return nil
		})
	}
	for i, p := range l.paths {
		g.Go(func() error {
			docs, err := l.readFile(p)
			if err != nil {
				return err
			}
			parts[len(l.urls)+i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Document
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s failed: %s", url, resp.Status)
	}
	docs, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	l.log.Info("documents fetched",
		zap.String("url", url),
		zap.Int("documents", len(docs)),
		zap.Duration("took", time.Since(start)),
	)
	return docs, nil
}

func (l *Loader) readFile(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	docs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	l.log.Info("documents read", zap.String("path", path), zap.Int("documents", len(docs)))
	return docs, nil
}

type courseDocuments struct {
	Course    string           `json:"course"`
	Documents []map[string]any `json:"documents"`
}

// Parse decodes the course-grouped FAQ format and flattens it, adding the course
// name to every entry. Non-string values are rendered with fmt; nulls are dropped.
func Parse(r io.Reader) ([]domain.Document, error) {
	var raw []courseDocuments
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	var out []domain.Document
	for _, c := range raw {
		for _, entry := range c.Documents {
			doc := make(domain.Document, len(entry)+1)
			for k, v := range entry {
				switch val := v.(type) {
				case string:
					doc[k] = val
				case nil:
				default:
					doc[k] = fmt.Sprint(val)
				}
			}
			doc["course"] = c.Course
			out = append(out, doc)
		}
	}
	return out, nil
}
