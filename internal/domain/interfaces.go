package domain

import (
	"context"
	"iter"
)

// Document is a single FAQ entry: field name to value. Fields are schema-flexible;
// a field absent from one document may be present on another.
type Document map[string]string

// Clone returns an independent copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// SearchOptions narrows and weights a search.
type SearchOptions struct {
	// Filter maps keyword field names to the exact value a document must carry.
	Filter map[string]string
	// Boost maps text field names to a positive score multiplier (default 1.0).
	Boost map[string]float64
	// Limit caps the number of returned documents.
	Limit int
}

// Searcher is the search-provider capability: bulk fit, then read-only search.
type Searcher interface {
	Name() string
	Fit(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, opts SearchOptions) ([]Document, error)
	Close() error
}

// Completer is the text-completion capability. The returned sequence is lazy,
// finite and can be consumed once; stopping early cancels generation.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (iter.Seq2[string, error], error)
}

// DocumentSource supplies the corpus.
type DocumentSource interface {
	Load(ctx context.Context) ([]Document, error)
}

// PromptBuilder turns a question and the retrieved documents into a prompt.
type PromptBuilder interface {
	Build(query string, docs []Document) string
}

// Answer is the outcome of a question: what was retrieved, what was sent, and the
// streamed reply.
type Answer struct {
	Query     string
	Documents []Document
	Prompt    string
	Chunks    iter.Seq2[string, error]
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	Load(ctx context.Context) (summary string, err error)
	Search(ctx context.Context, query string, opts SearchOptions) ([]Document, error)
	Ask(ctx context.Context, query string, opts SearchOptions) (*Answer, error)
}
