package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/monitoring"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/pkg/googlecse"
	"github.com/sells-group/enrich-cli/pkg/jina"
	"github.com/sells-group/enrich-cli/pkg/serpapi"
)

// serpBackend adapts pkg/serpapi.
type serpBackend struct {
	client serpapi.Client
	retry  resilience.RetryConfig
}

// NewSerpAPI wraps a SerpAPI client as a Backend.
func NewSerpAPI(client serpapi.Client, retry resilience.RetryConfig) Backend {
	return &serpBackend{client: client, retry: retry}
}

func (b *serpBackend) Name() string { return "serp" }

func (b *serpBackend) Search(ctx context.Context, query string, max int) ([]model.SearchHit, error) {
	monitoring.SearchesTotal.WithLabelValues(b.Name()).Inc()
	results, err := resilience.DoVal(ctx, b.retry, func(ctx context.Context) ([]serpapi.Result, error) {
		return b.client.Search(ctx, query, max)
	})
	if err != nil {
		return degrade(ctx, b.Name(), query, err)
	}
	hits := make([]model.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, model.SearchHit{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Source: b.Name()})
	}
	return hits, nil
}

// googleBackend adapts pkg/googlecse.
type googleBackend struct {
	client googlecse.Client
	retry  resilience.RetryConfig
}

// NewGoogleCSE wraps a Custom Search client as a Backend.
func NewGoogleCSE(client googlecse.Client, retry resilience.RetryConfig) Backend {
	return &googleBackend{client: client, retry: retry}
}

func (b *googleBackend) Name() string { return "google" }

func (b *googleBackend) Search(ctx context.Context, query string, max int) ([]model.SearchHit, error) {
	monitoring.SearchesTotal.WithLabelValues(b.Name()).Inc()
	items, err := resilience.DoVal(ctx, b.retry, func(ctx context.Context) ([]googlecse.Item, error) {
		return b.client.Search(ctx, query, max)
	})
	if err != nil {
		return degrade(ctx, b.Name(), query, err)
	}
	hits := make([]model.SearchHit, 0, len(items))
	for _, it := range items {
		hits = append(hits, model.SearchHit{Title: it.Title, URL: it.Link, Snippet: it.Snippet, Source: b.Name()})
	}
	return hits, nil
}

// jinaBackend adapts pkg/jina. The Jina search API returns a fixed
// result page, so max truncates client-side.
type jinaBackend struct {
	client jina.Client
	retry  resilience.RetryConfig
}

// NewJina wraps a Jina search client as a Backend.
func NewJina(client jina.Client, retry resilience.RetryConfig) Backend {
	return &jinaBackend{client: client, retry: retry}
}

func (b *jinaBackend) Name() string { return "jina" }

func (b *jinaBackend) Search(ctx context.Context, query string, max int) ([]model.SearchHit, error) {
	monitoring.SearchesTotal.WithLabelValues(b.Name()).Inc()
	resp, err := resilience.DoVal(ctx, b.retry, func(ctx context.Context) (*jina.SearchResponse, error) {
		return b.client.Search(ctx, query)
	})
	if err != nil {
		return degrade(ctx, b.Name(), query, err)
	}
	data := resp.Data
	if max > 0 && len(data) > max {
		data = data[:max]
	}
	hits := make([]model.SearchHit, 0, len(data))
	for _, r := range data {
		hits = append(hits, model.SearchHit{Title: r.Title, URL: r.URL, Snippet: r.Description, Source: b.Name()})
	}
	return hits, nil
}

// degrade converts an exhausted or permanent provider error into an
// empty result set. Context cancellation still aborts.
func degrade(ctx context.Context, backend, query string, err error) ([]model.SearchHit, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	monitoring.SearchErrorsTotal.WithLabelValues(backend).Inc()
	zap.L().Warn("search: provider failed, dropping its results",
		zap.String("backend", backend),
		zap.String("query", query),
		zap.Error(err))
	return nil, nil
}
