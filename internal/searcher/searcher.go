// Package searcher selects a search-provider implementation from configuration.
package searcher

import (
	"fmt"

	"go.uber.org/zap"

	"faqrag/internal/config"
	"faqrag/internal/domain"
	"faqrag/internal/searcher/elastic"
	"faqrag/internal/searcher/keyword"
	"faqrag/internal/searcher/memory"
)

// New builds the searcher named by cfg.Type.
func New(cfg config.IndexConfig, log *zap.Logger) (domain.Searcher, error) {
	var (
		s   domain.Searcher
		err error
	)
	switch cfg.Type {
	case "memory", "":
		s, err = wrap(memory.NewSearcher(cfg.TextFields, cfg.KeywordFields))
	case "bleve":
		s, err = wrap(keyword.NewBleveSearcher(cfg.TextFields, cfg.KeywordFields, log))
	case "elasticsearch":
		if cfg.Elasticsearch == nil {
			return nil, fmt.Errorf("elasticsearch config missing")
		}
		s, err = wrap(elastic.NewSearcher(elastic.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
			Index:     cfg.Elasticsearch.Index,
		}, cfg.TextFields, cfg.KeywordFields, log))
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// wrap keeps a failed constructor from leaking a typed nil into the interface.
func wrap[T domain.Searcher](s T, err error) (domain.Searcher, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
