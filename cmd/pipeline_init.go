package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/blocklist"
	"github.com/sells-group/enrich-cli/internal/pipeline"
	"github.com/sells-group/enrich-cli/internal/search"
	"github.com/sells-group/enrich-cli/internal/store"
	anthropicpkg "github.com/sells-group/enrich-cli/pkg/anthropic"
)

// pipelineEnv holds the initialized store, clients, and pipeline shared
// by the enrich and serve commands.
type pipelineEnv struct {
	Store    store.Store // nil when journaling is disabled
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline builds the real-API pipeline: configured search backends
// behind the shared rate limiter, the Claude arbiter, and the run
// journal. Callers should defer env.Close().
func initPipeline(ctx context.Context, journal bool) (*pipelineEnv, error) {
	if err := validateAPIKeys(); err != nil {
		return nil, err
	}

	searcher, err := search.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	block, err := blocklist.FromOverlay(cfg.Blocklist.File)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if journal {
		st, err = initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
	gatherer := pipeline.NewGatherer(searcher, block, pipeline.GatherConfigFromPipeline(cfg))
	arbiter := pipeline.NewArbiter(llm, cfg.Anthropic)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, gatherer, arbiter, st),
	}, nil
}

// initOfflinePipeline builds a pipeline with stub clients so the full
// flow runs without network access or API keys. The journal, when
// enabled, always uses SQLite.
func initOfflinePipeline(ctx context.Context, journal bool) (*pipelineEnv, error) {
	block, err := blocklist.FromOverlay(cfg.Blocklist.File)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if journal {
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "enrich.db"
		}
		st, err = store.NewSQLite(dsn)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	searcher := search.NewMulti(nil, &pipeline.StubBackend{})
	gatherer := pipeline.NewGatherer(searcher, block, pipeline.GatherConfigFromPipeline(cfg))
	arbiter := pipeline.NewArbiter(&pipeline.StubArbiterClient{}, cfg.Anthropic)

	zap.L().Info("offline mode: stub search backend and stub arbiter")

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, gatherer, arbiter, st),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "enrich.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// validateAPIKeys checks keys the arbiter needs up front. Backend keys
// are validated by search.FromConfig with per-backend messages.
func validateAPIKeys() error {
	if cfg.Anthropic.Key == "" {
		return eris.New("anthropic key required (ENRICH_ANTHROPIC_KEY); use --offline for stub mode")
	}
	return nil
}
