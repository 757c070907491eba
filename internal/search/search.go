// Package search fans seller queries out to the configured web search
// providers and normalizes their results into model.SearchHit values.
//
// Provider failures degrade: a backend that still errors after its
// retry budget contributes zero hits and the pipeline moves on. Only
// context cancellation aborts a query.
package search

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/pkg/googlecse"
	"github.com/sells-group/enrich-cli/pkg/jina"
	"github.com/sells-group/enrich-cli/pkg/serpapi"
)

// Backend is one search provider.
type Backend interface {
	Name() string
	// Search runs one query and returns normalized hits. Provider
	// failures come back as (nil, nil) after a warn log; only context
	// cancellation returns an error.
	Search(ctx context.Context, query string, max int) ([]model.SearchHit, error)
}

const (
	// rateLimitStep sets the linear wait ladder on HTTP 429: attempt 1
	// sleeps 10s, attempt 2 sleeps 20s.
	rateLimitStep = 10 * time.Second
	// transientDelay paces retries of non-429 transient failures.
	transientDelay = 2 * time.Second
)

// providerRetry returns the retry schedule shared by all backends.
func providerRetry(maxAttempts int) resilience.RetryConfig {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return resilience.RetryConfig{
		MaxAttempts: maxAttempts,
		DelayFor: func(attempt int, err error) time.Duration {
			if resilience.IsRateLimited(err) {
				d := time.Duration(attempt) * rateLimitStep
				if hint, ok := resilience.RetryAfterHint(err); ok && hint > d {
					d = hint
				}
				return d
			}
			return transientDelay
		},
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("search: provider call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
		},
	}
}

// Multi runs one query against every backend in order, pacing each
// provider call through a shared token bucket.
type Multi struct {
	backends []Backend
	limiter  *rate.Limiter
}

// NewMulti assembles a Multi over the given backends. A nil limiter
// disables pacing.
func NewMulti(limiter *rate.Limiter, backends ...Backend) *Multi {
	return &Multi{backends: backends, limiter: limiter}
}

// Names returns the backend names in call order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.backends))
	for i, b := range m.backends {
		names[i] = b.Name()
	}
	return names
}

// Search concatenates per-backend results in backend order. Duplicates
// survive here; the candidate aggregator dedupes by domain downstream.
func (m *Multi) Search(ctx context.Context, query string, perBackend int) ([]model.SearchHit, error) {
	var hits []model.SearchHit
	for _, b := range m.backends {
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "search: limiter wait")
			}
		}
		res, err := b.Search(ctx, query, perBackend)
		if err != nil {
			return nil, err
		}
		hits = append(hits, res...)
	}
	return hits, nil
}

// FromConfig builds the configured backend set. Recognized names are
// serp, google, and jina, plus "both" as an alias for serp+google.
// Each selected backend must have its credential configured.
func FromConfig(cfg *config.Config) (*Multi, error) {
	names := cfg.Search.Backends
	if len(names) == 0 {
		names = []string{"serp"}
	}

	var hc *http.Client
	if cfg.Search.TimeoutSecs > 0 {
		hc = &http.Client{Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second}
	}
	retry := providerRetry(cfg.Search.MaxAttempts)

	var backends []Backend
	seen := map[string]bool{}
	add := func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		switch name {
		case "serp":
			if cfg.SerpAPI.Key == "" {
				return eris.New("search: serpapi key required (ENRICH_SERPAPI_KEY)")
			}
			var opts []serpapi.Option
			if cfg.SerpAPI.BaseURL != "" {
				opts = append(opts, serpapi.WithBaseURL(cfg.SerpAPI.BaseURL))
			}
			if hc != nil {
				opts = append(opts, serpapi.WithHTTPClient(hc))
			}
			backends = append(backends, NewSerpAPI(serpapi.NewClient(cfg.SerpAPI.Key, opts...), retry))
		case "google":
			if cfg.GoogleCSE.Key == "" || cfg.GoogleCSE.CX == "" {
				return eris.New("search: google cse key and cx required (ENRICH_GOOGLECSE_KEY, ENRICH_GOOGLECSE_CX)")
			}
			var opts []googlecse.Option
			if cfg.GoogleCSE.BaseURL != "" {
				opts = append(opts, googlecse.WithBaseURL(cfg.GoogleCSE.BaseURL))
			}
			if hc != nil {
				opts = append(opts, googlecse.WithHTTPClient(hc))
			}
			backends = append(backends, NewGoogleCSE(googlecse.NewClient(cfg.GoogleCSE.Key, cfg.GoogleCSE.CX, opts...), retry))
		case "jina":
			if cfg.Jina.Key == "" {
				return eris.New("search: jina key required (ENRICH_JINA_KEY)")
			}
			var opts []jina.Option
			if cfg.Jina.SearchBaseURL != "" {
				opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
			}
			if hc != nil {
				opts = append(opts, jina.WithHTTPClient(hc))
			}
			backends = append(backends, NewJina(jina.NewClient(cfg.Jina.Key, opts...), retry))
		default:
			return eris.Errorf("search: unknown backend %q", name)
		}
		return nil
	}

	for _, n := range names {
		if n == "both" {
			if err := add("serp"); err != nil {
				return nil, err
			}
			if err := add("google"); err != nil {
				return nil, err
			}
			continue
		}
		if err := add(n); err != nil {
			return nil, err
		}
	}

	ratePerSec := cfg.Search.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1.0
	}
	burst := cfg.Search.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), burst)

	return NewMulti(limiter, backends...), nil
}
