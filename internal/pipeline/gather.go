package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/enrich-cli/internal/blocklist"
	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
)

// Searcher runs one query against the configured backend set. Satisfied
// by search.Multi; provider pacing and degradation live behind it.
type Searcher interface {
	Search(ctx context.Context, query string, perBackend int) ([]model.SearchHit, error)
	Names() []string
}

// GatherConfig sizes the evidence-collection stage.
type GatherConfig struct {
	// PerQuery is the result count requested per query per backend.
	PerQuery int
	// TopCandidates caps the filtered candidate set shown to the
	// arbiter for one entity.
	TopCandidates int
	// Concurrency bounds how many entities gather in parallel.
	Concurrency int
	// LinkedIn enables the secondary-signal lookup.
	LinkedIn bool
	// LinkedInMax caps kept LinkedIn hits per entity.
	LinkedInMax int
}

// GatherConfigFromPipeline maps loaded configuration onto gather sizing.
func GatherConfigFromPipeline(cfg *config.Config) GatherConfig {
	return GatherConfig{
		PerQuery:      cfg.Search.PerQuery,
		TopCandidates: cfg.Pipeline.TopCandidates,
		Concurrency:   cfg.Pipeline.Concurrency,
		LinkedIn:      cfg.Pipeline.LinkedInLookup,
		LinkedInMax:   cfg.Pipeline.LinkedInMax,
	}
}

func (c GatherConfig) withDefaults() GatherConfig {
	if c.PerQuery <= 0 {
		c.PerQuery = 8
	}
	if c.TopCandidates <= 0 {
		c.TopCandidates = 12
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.LinkedInMax <= 0 {
		c.LinkedInMax = 3
	}
	return c
}

// Gatherer collects and filters web evidence for batches of entities.
type Gatherer struct {
	searcher Searcher
	block    *blocklist.Blocklist
	cfg      GatherConfig
}

// NewGatherer assembles a Gatherer. A nil block falls back to the
// built-in blocklist.
func NewGatherer(searcher Searcher, block *blocklist.Blocklist, cfg GatherConfig) *Gatherer {
	if block == nil {
		block = blocklist.Default()
	}
	return &Gatherer{searcher: searcher, block: block, cfg: cfg.withDefaults()}
}

// Gather fills a Batch with per-entity candidate sets. Entities gather
// concurrently on a bounded pool; Items keeps entity order so arbiter
// responses stay positionally aligned. Only context cancellation
// errors: provider failures already degraded to empty hit sets below.
func (g *Gatherer) Gather(ctx context.Context, entities []model.Entity) (model.Batch, error) {
	items := make([]model.BatchItem, len(entities))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for i, e := range entities {
		eg.Go(func() error {
			item, err := g.gatherOne(ctx, e)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return model.Batch{}, err
	}

	return model.Batch{Items: items}, nil
}

func (g *Gatherer) gatherOne(ctx context.Context, e model.Entity) (model.BatchItem, error) {
	item := model.BatchItem{Entity: e}

	var candidates []model.Candidate
	seen := make(map[string]struct{})
	for _, q := range buildQueries(e) {
		hits, err := g.searcher.Search(ctx, q, g.cfg.PerQuery)
		if err != nil {
			return model.BatchItem{}, err
		}
		for _, h := range hits {
			domain := blocklist.ExtractDomain(h.URL)
			if domain == "" || g.block.Blocked(domain) {
				continue
			}
			if _, dup := seen[domain]; dup {
				continue
			}
			seen[domain] = struct{}{}
			candidates = append(candidates, model.Candidate{SearchHit: h, Domain: domain})
		}
	}
	// Priority order decides who survives the cap: brand-query hits
	// land first and stay.
	if len(candidates) > g.cfg.TopCandidates {
		candidates = candidates[:g.cfg.TopCandidates]
	}
	item.Candidates = candidates

	if g.cfg.LinkedIn {
		if q := linkedInQuery(e); q != "" {
			// Evidence, not candidates: linkedin.com is blocked as a
			// candidate domain but still informs the arbiter.
			hits, err := g.searcher.Search(ctx, q, g.cfg.LinkedInMax)
			if err != nil {
				return model.BatchItem{}, err
			}
			if len(hits) > g.cfg.LinkedInMax {
				hits = hits[:g.cfg.LinkedInMax]
			}
			item.LinkedIn = hits
		}
	}

	zap.L().Debug("gather: evidence collected",
		zap.String("entity", e.DisplayName()),
		zap.Int("candidates", len(item.Candidates)),
		zap.Int("linkedin_hits", len(item.LinkedIn)))

	return item, nil
}
