// Package index implements an in-memory text index over field-tagged documents.
//
// Text fields are scored with per-field TF-IDF cosine similarity, multiplied by an
// optional per-field boost and summed across fields. Keyword fields are never
// tokenized; they are only compared for exact equality when filtering.
package index

import (
	"maps"
	"math"
	"slices"
	"sync"

	"faqrag/internal/domain"
)

// DefaultLimit applies when a search asks for a non-positive number of results.
const DefaultLimit = 10

// State is the lifecycle state of an Index.
type State int

const (
	// Unbuilt is the state between construction and the first Fit.
	Unbuilt State = iota
	// Built is the state after any Fit.
	Built
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Built:
		return "built"
	default:
		return "unknown"
	}
}

type posting struct {
	doc    int
	weight float64 // L2-normalised tf*idf of the term in this document's field
}

type fieldIndex struct {
	idf      map[string]float64
	postings map[string][]posting
}

// Index holds a corpus and answers filtered, boosted free-text queries.
// Fit takes the write lock; Search runs under the read lock.
type Index struct {
	mu            sync.RWMutex
	textFields    []string
	keywordFields []string
	state         State
	docs          []domain.Document
	fields        []fieldIndex
}

// New creates an unbuilt index. Field lists are de-duplicated keeping first
// occurrence. A field named in both lists, or an empty field name, is a
// *ConfigurationError. An empty textFields list is allowed; such an index
// matches nothing.
func New(textFields, keywordFields []string) (*Index, error) {
	text, keyword, err := NormalizeFields(textFields, keywordFields)
	if err != nil {
		return nil, err
	}
	return &Index{textFields: text, keywordFields: keyword}, nil
}

// NormalizeFields validates a field configuration and returns de-duplicated copies
// of both lists.
func NormalizeFields(textFields, keywordFields []string) (text, keyword []string, err error) {
	if text, err = normalizeFields(textFields); err != nil {
		return nil, nil, err
	}
	if keyword, err = normalizeFields(keywordFields); err != nil {
		return nil, nil, err
	}
	for _, f := range keyword {
		if slices.Contains(text, f) {
			return nil, nil, &ConfigurationError{Field: f, Reason: "is listed as both a text and a keyword field"}
		}
	}
	return text, keyword, nil
}

func normalizeFields(fields []string) ([]string, error) {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			return nil, &ConfigurationError{Reason: "empty field name"}
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// TextFields returns the configured text fields in scoring order.
func (ix *Index) TextFields() []string { return slices.Clone(ix.textFields) }

// KeywordFields returns the configured keyword fields.
func (ix *Index) KeywordFields() []string { return slices.Clone(ix.keywordFields) }

// State reports whether the index has been fitted.
func (ix *Index) State() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

// Len returns the number of documents in the current corpus.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Fit replaces the corpus with copies of docs and precomputes per-field term
// statistics. Missing fields are indexed as empty text.
func (ix *Index) Fit(docs []domain.Document) {
	corpus := make([]domain.Document, len(docs))
	for i, d := range docs {
		corpus[i] = d.Clone()
	}
	fields := make([]fieldIndex, len(ix.textFields))
	for i, name := range ix.textFields {
		fields[i] = buildField(corpus, name)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = corpus
	ix.fields = fields
	ix.state = Built
}

func buildField(docs []domain.Document, name string) fieldIndex {
	tfs := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		tf := make(map[string]int)
		for _, tok := range Tokenize(d[name]) {
			tf[tok]++
		}
		for term := range tf {
			df[term]++
		}
		tfs[i] = tf
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		// Smoothed IDF
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1.0
	}

	postings := make(map[string][]posting, len(df))
	for i, tf := range tfs {
		if len(tf) == 0 {
			continue
		}
		// sorted so the norm is summed in the same order on every fit
		terms := slices.Sorted(maps.Keys(tf))
		norm := 0.0
		for _, term := range terms {
			w := float64(tf[term]) * idf[term]
			norm += w * w
		}
		norm = math.Sqrt(norm)
		for _, term := range terms {
			postings[term] = append(postings[term], posting{doc: i, weight: float64(tf[term]) * idf[term] / norm})
		}
	}
	return fieldIndex{idf: idf, postings: postings}
}

type hit struct {
	doc   int
	score float64
}

// Search returns up to opts.Limit documents matching query, best first. Only
// documents passing opts.Filter with a positive score are returned; equal scores
// keep insertion order. An unbuilt index or a query without usable terms yields
// an empty slice.
func (ix *Index) Search(query string, opts domain.SearchOptions) []domain.Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.state != Built || len(ix.docs) == 0 {
		return []domain.Document{}
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []domain.Document{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	allowed := ix.filterMask(opts.Filter)

	scores := make(map[int]float64)
	weights := make([]float64, len(terms))
	for fi, name := range ix.textFields {
		f := ix.fields[fi]
		qnorm := 0.0
		for j, t := range terms {
			weights[j] = 0
			if idf, ok := f.idf[t.term]; ok {
				weights[j] = float64(t.count) * idf
				qnorm += weights[j] * weights[j]
			}
		}
		if qnorm == 0 {
			continue
		}
		qnorm = math.Sqrt(qnorm)
		boost := FieldBoost(opts.Boost, name)
		for j, t := range terms {
			if weights[j] == 0 {
				continue
			}
			qw := weights[j] / qnorm
			for _, p := range f.postings[t.term] {
				if allowed != nil && !allowed[p.doc] {
					continue
				}
				scores[p.doc] += boost * qw * p.weight
			}
		}
	}

	hits := make([]hit, 0, len(scores))
	for doc, score := range scores {
		if score > 0 {
			hits = append(hits, hit{doc: doc, score: score})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return a.doc - b.doc
		}
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]domain.Document, len(hits))
	for i, h := range hits {
		out[i] = ix.docs[h.doc].Clone()
	}
	return out
}

// filterMask marks the documents whose fields equal every filter value exactly.
// A nil mask means no filtering.
func (ix *Index) filterMask(filter map[string]string) []bool {
	if len(filter) == 0 {
		return nil
	}
	mask := make([]bool, len(ix.docs))
	for i, d := range ix.docs {
		mask[i] = MatchesFilter(d, filter)
	}
	return mask
}

// MatchesFilter reports whether every filter value equals the document's field
// exactly. A missing field never matches.
func MatchesFilter(d domain.Document, filter map[string]string) bool {
	for key, want := range filter {
		got, ok := d[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// FieldBoost returns the multiplier for field. Unlisted, non-positive and infinite
// values count as 1.0.
func FieldBoost(boost map[string]float64, field string) float64 {
	if b, ok := boost[field]; ok && b > 0 && !math.IsInf(b, 1) {
		return b
	}
	return 1.0
}
