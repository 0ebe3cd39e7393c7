// Package keyword provides a Bleve-backed Searcher.
package keyword

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"faqrag/internal/domain"
	"faqrag/internal/index"
)

// BleveSearcher keeps the corpus in an in-memory Bleve index. Text fields use the
// standard analyzer (lowercase + tokenize + stop words, no stemming); keyword
// fields are indexed untokenized for exact term filters.
type BleveSearcher struct {
	mu            sync.RWMutex
	textFields    []string
	keywordFields []string
	index         bleve.Index
	docs          []domain.Document
	log           *zap.Logger
}

// NewBleveSearcher validates the field configuration. The Bleve index itself is
// created on Fit.
func NewBleveSearcher(textFields, keywordFields []string, log *zap.Logger) (*BleveSearcher, error) {
	text, kw, err := index.NormalizeFields(textFields, keywordFields)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BleveSearcher{textFields: text, keywordFields: kw, log: log}, nil
}

func (b *BleveSearcher) Name() string { return "bleve" }

func (b *BleveSearcher) buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// only configured fields are indexed; the documents themselves stay in b.docs
	docMapping.Dynamic = false
	for _, f := range b.textFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		docMapping.AddFieldMappingsAt(f, fm)
	}
	for _, f := range b.keywordFields {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = false
		docMapping.AddFieldMappingsAt(f, fm)
	}
	im.DefaultMapping = docMapping
	return im
}

// Fit builds a fresh in-memory index from docs and swaps it in; the previous index
// is closed. Document ids are insertion positions.
func (b *BleveSearcher) Fit(ctx context.Context, docs []domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := bleve.NewMemOnly(b.buildMapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}
	corpus := make([]domain.Document, len(docs))
	batch := idx.NewBatch()
	for i, d := range docs {
		corpus[i] = d.Clone()
		if err := batch.Index(strconv.Itoa(i), b.indexable(d)); err != nil {
			_ = idx.Close()
			return fmt.Errorf("batch document %d: %w", i, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("bleve batch index: %w", err)
	}

	b.mu.Lock()
	old := b.index
	b.index = idx
	b.docs = corpus
	b.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			b.log.Warn("close previous bleve index", zap.Error(err))
		}
	}
	b.log.Debug("bleve index built", zap.Int("documents", len(corpus)))
	return nil
}

func (b *BleveSearcher) indexable(d domain.Document) map[string]interface{} {
	out := make(map[string]interface{}, len(b.textFields)+len(b.keywordFields))
	for _, f := range b.textFields {
		out[f] = d[f]
	}
	for _, f := range b.keywordFields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Search runs one match query per text field (boosted), OR-ed together, and ANDs
// in a term query per keyword filter. Filter keys that are not keyword fields are
// checked against the stored documents afterwards. Equal scores keep insertion
// order.
func (b *BleveSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.index == nil || len(b.docs) == 0 || len(b.textFields) == 0 || strings.TrimSpace(query) == "" {
		return []domain.Document{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = index.DefaultLimit
	}

	should := make([]blevequery.Query, 0, len(b.textFields))
	for _, f := range b.textFields {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(f)
		mq.SetBoost(index.FieldBoost(opts.Boost, f))
		should = append(should, mq)
	}
	var q blevequery.Query = bleve.NewDisjunctionQuery(should...)
	if len(opts.Filter) > 0 {
		must := []blevequery.Query{q}
		for _, k := range slices.Sorted(maps.Keys(opts.Filter)) {
			if !slices.Contains(b.keywordFields, k) {
				continue
			}
			tq := bleve.NewTermQuery(opts.Filter[k])
			tq.SetField(k)
			must = append(must, tq)
		}
		q = bleve.NewConjunctionQuery(must...)
	}

	// The whole corpus is already in memory; asking for every hit lets ties at the
	// limit boundary resolve by insertion order.
	req := bleve.NewSearchRequestOptions(q, len(b.docs), 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, 0, len(res.Hits))
	for _, h := range res.Hits {
		pos, err := strconv.Atoi(h.ID)
		if err != nil || pos < 0 || pos >= len(b.docs) || h.Score <= 0 {
			continue
		}
		if !index.MatchesFilter(b.docs[pos], opts.Filter) {
			continue
		}
		hits = append(hits, scored{pos: pos, score: h.Score})
	}
	slices.SortFunc(hits, func(x, y scored) int {
		if c := cmp.Compare(y.score, x.score); c != 0 {
			return c
		}
		return cmp.Compare(x.pos, y.pos)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.Document, len(hits))
	for i, h := range hits {
		out[i] = b.docs[h.pos].Clone()
	}
	return out, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveSearcher) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, nil
	}
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveSearcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	b.docs = nil
	return err
}
