// Package elastic provides a Searcher backed by an Elasticsearch index.
package elastic

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"faqrag/internal/domain"
	"faqrag/internal/index"
)

// DefaultIndex is the index name used when none is configured.
const DefaultIndex = "faq_index"

// Config holds connection details for the cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// Searcher wraps go-elasticsearch. Fit recreates the index and bulk loads the
// corpus; Search issues a boosted bool query.
type Searcher struct {
	es            *elasticsearch.Client
	index         string
	textFields    []string
	keywordFields []string
	log           *zap.Logger

	mu    sync.RWMutex
	count int
	built bool
}

// NewSearcher instantiates the client. No request is made until Fit or Ping.
func NewSearcher(cfg Config, textFields, keywordFields []string, log *zap.Logger) (*Searcher, error) {
	text, kw, err := index.NormalizeFields(textFields, keywordFields)
	if err != nil {
		return nil, err
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	name := cfg.Index
	if name == "" {
		name = DefaultIndex
	}
	return &Searcher{es: es, index: name, textFields: text, keywordFields: kw, log: log}, nil
}

func (s *Searcher) Name() string { return "elasticsearch" }

// Ping checks if Elasticsearch is available.
func (s *Searcher) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// Fit drops the index if it exists, recreates it with an explicit mapping and
// bulk-indexes docs with their insertion position as _id.
func (s *Searcher) Fit(ctx context.Context, docs []domain.Document) error {
	// searches see an empty index until the new corpus is fully loaded
	s.mu.Lock()
	s.count = 0
	s.built = false
	s.mu.Unlock()

	if err := s.resetIndex(ctx); err != nil {
		return err
	}
	if len(docs) > 0 {
		if err := s.bulkIndex(ctx, docs); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.count = len(docs)
	s.built = true
	s.mu.Unlock()
	s.log.Info("elasticsearch index loaded", zap.String("index", s.index), zap.Int("documents", len(docs)))
	return nil
}

func (s *Searcher) resetIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		del, err := s.es.Indices.Delete([]string{s.index}, s.es.Indices.Delete.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("delete index: %w", err)
		}
		defer del.Body.Close()
		if del.IsError() {
			return fmt.Errorf("delete index failed: %s", readError(del.Body))
		}
	}

	payload, err := json.Marshal(s.mapping())
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	created, err := s.es.Indices.Create(
		s.index,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return fmt.Errorf("create index failed: %s", readError(created.Body))
	}
	return nil
}

func (s *Searcher) mapping() map[string]any {
	props := make(map[string]any, len(s.textFields)+len(s.keywordFields))
	for _, f := range s.textFields {
		props[f] = map[string]any{"type": "text"}
	}
	for _, f := range s.keywordFields {
		props[f] = map[string]any{"type": "keyword"}
	}
	return map[string]any{
		"mappings": map[string]any{
			// other fields stay in _source without being indexed
			"dynamic":    false,
			"properties": props,
		},
	}
}

func (s *Searcher) bulkIndex(ctx context.Context, docs []domain.Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, d := range docs {
		meta := map[string]any{"index": map[string]any{"_id": strconv.Itoa(i)}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encode document %d: %w", i, err)
		}
	}

	res, err := s.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(s.index),
		s.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index failed: %s", readError(res.Body))
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string          `json:"_id"`
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, r := range item {
				if len(r.Error) > 0 {
					return fmt.Errorf("bulk index document %s failed: %s", r.ID, string(r.Error))
				}
			}
		}
		return fmt.Errorf("bulk index reported errors")
	}
	return nil
}

// Search mirrors the FAQ query: one boosted match per text field with at least one
// required, plus term filters on keyword fields. Filter keys that are not keyword
// fields are checked against _source.
func (s *Searcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Document, error) {
	s.mu.RLock()
	built, count := s.built, s.count
	s.mu.RUnlock()

	if !built || count == 0 || len(s.textFields) == 0 || strings.TrimSpace(query) == "" {
		return []domain.Document{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = index.DefaultLimit
	}

	should := make([]map[string]any, 0, len(s.textFields))
	for _, f := range s.textFields {
		should = append(should, map[string]any{
			"match": map[string]any{
				f: map[string]any{"query": query, "boost": index.FieldBoost(opts.Boost, f)},
			},
		})
	}
	boolQuery := map[string]any{
		"must": []map[string]any{
			{"bool": map[string]any{"should": should, "minimum_should_match": 1}},
		},
	}
	filters := make([]map[string]any, 0, len(opts.Filter))
	for _, k := range slices.Sorted(maps.Keys(opts.Filter)) {
		if !slices.Contains(s.keywordFields, k) {
			continue
		}
		filters = append(filters, map[string]any{"term": map[string]any{k: opts.Filter[k]}})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	// Every hit is fetched: the cluster breaks score ties in its own order, so
	// truncating to limit happens here after ordering ties by position.
	body := map[string]any{
		"size":  count,
		"query": map[string]any{"bool": boolQuery},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", readError(res.Body))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Score  float64        `json:"_score"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	type scored struct {
		pos   int
		score float64
		doc   domain.Document
	}
	hits := make([]scored, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		if h.Score <= 0 {
			continue
		}
		doc := toDocument(h.Source)
		if !index.MatchesFilter(doc, opts.Filter) {
			continue
		}
		pos, err := strconv.Atoi(h.ID)
		if err != nil {
			pos = count
		}
		hits = append(hits, scored{pos: pos, score: h.Score, doc: doc})
	}
	slices.SortStableFunc(hits, func(x, y scored) int {
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
		out[i] = h.doc
	}
	return out, nil
}

// Close is a no-op; the index is left in place for inspection.
func (s *Searcher) Close() error { return nil }

func toDocument(src map[string]any) domain.Document {
	doc := make(domain.Document, len(src))
	for k, v := range src {
		switch val := v.(type) {
		case string:
			doc[k] = val
		case nil:
		default:
			doc[k] = fmt.Sprint(val)
		}
	}
	return doc
}

func readError(body io.Reader) string {
	data, _ := io.ReadAll(body)
	return strings.TrimSpace(string(data))
}
