// Package memory adapts the in-process text index to the Searcher capability.
package memory

import (
	"context"

	"faqrag/internal/domain"
	"faqrag/internal/index"
)

// Searcher serves searches from an in-memory index. It never fails.
type Searcher struct {
	ix *index.Index
}

// NewSearcher builds an unbuilt index over the given fields.
func NewSearcher(textFields, keywordFields []string) (*Searcher, error) {
	ix, err := index.New(textFields, keywordFields)
	if err != nil {
		return nil, err
	}
	return &Searcher{ix: ix}, nil
}

func (s *Searcher) Name() string { return "memory" }

func (s *Searcher) Fit(_ context.Context, docs []domain.Document) error {
	s.ix.Fit(docs)
	return nil
}

func (s *Searcher) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.Document, error) {
	return s.ix.Search(query, opts), nil
}

// State reports whether the underlying index has been fitted.
func (s *Searcher) State() index.State { return s.ix.State() }

func (s *Searcher) Close() error { return nil }
