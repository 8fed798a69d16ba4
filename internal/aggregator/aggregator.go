// internal/aggregator/aggregator.go
package aggregator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"news-agent/internal/common/config"
	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/common/metrics"
	"news-agent/internal/models"
	"news-agent/internal/providers"
)

// Result is a merged aggregation outcome. Degraded is true when at least one
// attempted provider failed; the articles present are still valid.
type Result struct {
	Articles []models.Article
	Degraded bool
}

// Aggregator fans a query out to every configured provider concurrently and
// merges whatever came back. A single slow or failing provider never blocks
// the others.
type Aggregator struct {
	providers []providers.Provider
	config    config.AggregatorConfig
	logger    logger.Logger
}

func New(provs []providers.Provider, cfg config.AggregatorConfig, log logger.Logger) *Aggregator {
	return &Aggregator{
		providers: provs,
		config:    cfg,
		logger:    log.With(map[string]interface{}{"component": "aggregator"}),
	}
}

type providerResult struct {
	name     string
	articles []models.Article
	err      error
	skipped  bool
}

// Aggregate queries all providers and merges the results. It fails only when
// every provider that could serve the query failed; partial failure yields a
// degraded result instead.
func (a *Aggregator) Aggregate(ctx context.Context, query models.NormalizedQuery) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.GetOverallTimeout())
	defer cancel()

	results := make([]providerResult, len(a.providers))
	var wg sync.WaitGroup

	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p providers.Provider) {
			defer wg.Done()
			results[i] = a.fetchOne(ctx, p, query)
		}(i, p)
	}
	wg.Wait()

	attempted, succeeded := 0, 0
	var merged []models.Article
	seen := make(map[string]bool)

	for _, r := range results {
		if r.skipped {
			continue
		}
		attempted++
		if r.err != nil {
			a.logger.Warn("provider fetch failed", map[string]interface{}{
				"provider": r.name,
				"error":    r.err.Error(),
			})
			continue
		}
		succeeded++
		// First provider wins on duplicate URLs; registration order is fixed.
		for _, article := range r.articles {
			if article.URL == "" || seen[article.URL] {
				continue
			}
			seen[article.URL] = true
			merged = append(merged, article)
		}
	}

	if attempted == 0 || succeeded == 0 {
		return nil, stderrors.NewAggregateUnavailableError(attempted)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})

	degraded := succeeded < attempted
	if degraded {
		metrics.AggregationsDegraded.Inc()
	}

	a.logger.Info("aggregation complete", map[string]interface{}{
		"queryKey":  query.Key(),
		"attempted": attempted,
		"succeeded": succeeded,
		"articles":  len(merged),
		"degraded":  degraded,
	})

	return &Result{Articles: merged, Degraded: degraded}, nil
}

// Fetch adapts Aggregate to the flat signature the cache layer consumes.
func (a *Aggregator) Fetch(ctx context.Context, query models.NormalizedQuery) ([]models.Article, bool, error) {
	result, err := a.Aggregate(ctx, query)
	if err != nil {
		return nil, false, err
	}
	return result.Articles, result.Degraded, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, p providers.Provider, query models.NormalizedQuery) providerResult {
	ctx, cancel := context.WithTimeout(ctx, a.config.GetProviderTimeout())
	defer cancel()

	start := time.Now()
	articles, err := p.Fetch(ctx, query)
	metrics.ProviderFetchDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if errors.Is(err, providers.ErrUnsupportedQuery) {
		metrics.ProviderFetches.WithLabelValues(p.Name(), "unsupported").Inc()
		return providerResult{name: p.Name(), skipped: true}
	}
	if err != nil {
		metrics.ProviderFetches.WithLabelValues(p.Name(), "error").Inc()
		return providerResult{name: p.Name(), err: err}
	}

	metrics.ProviderFetches.WithLabelValues(p.Name(), "success").Inc()
	return providerResult{name: p.Name(), articles: articles}
}
