// Package pipeline drives enrichment runs end to end: load the record
// store, build queries, gather and filter web evidence per entity,
// arbitrate batches through the model, and checkpoint the full table
// after every batch so a killed run resumes where it stopped.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/monitoring"
	"github.com/sells-group/enrich-cli/internal/recordio"
	"github.com/sells-group/enrich-cli/internal/store"
)

// MissingColumnError reports a required input column absent from the
// record store header. The CLI maps it to exit code 1 before any row
// is processed.
type MissingColumnError struct {
	Column string
	Header []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("pipeline: column %q not found (have: %s)", e.Column, strings.Join(e.Header, ", "))
}

// Options holds the per-run parameters the CLI passes in.
type Options struct {
	InputPath string
	// OutputPath defaults to InputPath (annotate in place).
	OutputPath string
	// Limit caps how many unresolved rows this run processes. 0 = all.
	Limit int
}

// Result summarizes a completed run.
type Result struct {
	// RunID is the journal id, or "" when journaling is disabled.
	RunID     string
	Stats     model.StatsSnapshot
	Processed int
	Batches   int
	Elapsed   time.Duration
}

// Pipeline composes the gather and arbitration stages over a record
// store, with an optional run journal.
type Pipeline struct {
	gatherer  *Gatherer
	arbiter   *Arbiter
	store     store.Store // nil disables journaling
	cols      config.ColumnsConfig
	batchSize int
}

// New assembles a Pipeline. st may be nil to disable the run journal.
func New(cfg *config.Config, gatherer *Gatherer, arbiter *Arbiter, st store.Store) *Pipeline {
	batchSize := cfg.Pipeline.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Pipeline{
		gatherer:  gatherer,
		arbiter:   arbiter,
		store:     st,
		cols:      cfg.Columns,
		batchSize: batchSize,
	}
}

// Run executes one enrichment pass over the input file. Rows whose
// output cell is already non-empty are skipped (resume contract); the
// remaining rows are processed in batches, and the whole table is
// rewritten atomically after each batch. Batch-level failures degrade
// to NOT FOUND rows and the run continues; only configuration errors,
// checkpoint write failures, and cancellation abort it.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()
	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = opts.InputPath
	}
	log := zap.L().With(zap.String("input", opts.InputPath), zap.String("output", outputPath))

	table, err := recordio.Read(opts.InputPath)
	if err != nil {
		return nil, err
	}
	cols, err := resolveColumns(table, p.cols)
	if err != nil {
		return nil, err
	}

	stats := &model.RunStats{}
	entities := partition(table, cols, stats)
	if opts.Limit > 0 && len(entities) > opts.Limit {
		entities = entities[:opts.Limit]
	}

	log.Info("pipeline: starting run",
		zap.Int("rows", len(table.Rows)),
		zap.Int("to_process", len(entities)),
		zap.Int64("skipped", stats.Skipped.Load()),
		zap.Strings("backends", p.gatherer.searcher.Names()),
		zap.Int("batch_size", p.batchSize))

	runID := p.journalStart(ctx, opts.InputPath, outputPath)

	var runErr error
	batches := 0
	totalBatches := (len(entities) + p.batchSize - 1) / p.batchSize
	for start := 0; start < len(entities); start += p.batchSize {
		if ctx.Err() != nil {
			runErr = eris.Wrap(ctx.Err(), "pipeline: run cancelled")
			break
		}
		end := min(start+p.batchSize, len(entities))
		chunk := entities[start:end]
		batchNum := start/p.batchSize + 1

		if err := p.processBatch(ctx, chunk, table, cols, stats, batchNum, totalBatches); err != nil {
			runErr = err
			break
		}
		if err := recordio.WriteSnapshot(outputPath, table); err != nil {
			runErr = eris.Wrap(err, "pipeline: write checkpoint")
			break
		}
		batches++
		monitoring.BatchesTotal.Inc()
		log.Info("pipeline: checkpoint saved", zap.Int("batch", batchNum), zap.Int("of", totalBatches))
	}

	if runErr == nil {
		if err := recordio.WriteSnapshot(outputPath, table); err != nil {
			runErr = eris.Wrap(err, "pipeline: write final snapshot")
		}
	}

	snapshot := stats.Snapshot()
	elapsed := time.Since(started)
	monitoring.RunDuration.Observe(elapsed.Seconds())
	p.journalFinish(runID, snapshot, runErr)

	if runErr != nil {
		log.Error("pipeline: run aborted",
			zap.Error(runErr),
			zap.Int("completed_batches", batches))
		return nil, runErr
	}

	log.Info("pipeline: run complete",
		zap.Int("processed", len(entities)),
		zap.Int64("found", snapshot.Found),
		zap.Int64("not_found", snapshot.NotFound),
		zap.Int64("skipped", snapshot.Skipped),
		zap.Duration("elapsed", elapsed))

	return &Result{
		RunID:     runID,
		Stats:     snapshot,
		Processed: len(entities),
		Batches:   batches,
		Elapsed:   elapsed,
	}, nil
}

// processBatch gathers, arbitrates, and merges one batch. Degradable
// failures become NoMatch decisions for the whole batch; only
// cancellation propagates as an error so unprocessed rows stay
// untouched for the next run.
func (p *Pipeline) processBatch(ctx context.Context, chunk []model.Entity, table *recordio.Table, cols columns, stats *model.RunStats, batchNum, totalBatches int) error {
	log := zap.L().With(zap.Int("batch", batchNum), zap.Int("of", totalBatches))
	log.Info("pipeline: processing batch", zap.Int("entities", len(chunk)))

	decisions, err := p.decideBatch(ctx, chunk)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(err, "pipeline: batch cancelled")
		}
		log.Warn("pipeline: batch degraded to not-found", zap.Error(err))
		decisions = make([]model.MatchDecision, len(chunk))
		for i := range decisions {
			decisions[i] = model.NoMatch()
		}
	}

	for i, e := range chunk {
		d := decisions[i]
		if d.Domain != nil {
			table.SetCell(e.Index, cols.output, *d.Domain)
			stats.Found.Add(1)
			monitoring.RowsTotal.WithLabelValues("found").Inc()
			log.Info("pipeline: domain resolved",
				zap.String("entity", e.DisplayName()),
				zap.String("domain", *d.Domain),
				zap.String("confidence", string(d.Confidence)))
		} else {
			table.SetCell(e.Index, cols.output, model.NotFoundMarker)
			stats.NotFound.Add(1)
			monitoring.RowsTotal.WithLabelValues("not_found").Inc()
			log.Info("pipeline: no acceptable match",
				zap.String("entity", e.DisplayName()),
				zap.String("confidence", string(d.Confidence)))
		}
	}
	return nil
}

func (p *Pipeline) decideBatch(ctx context.Context, chunk []model.Entity) ([]model.MatchDecision, error) {
	batch, err := p.gatherer.Gather(ctx, chunk)
	if err != nil {
		return nil, err
	}
	return p.arbiter.Arbitrate(ctx, batch)
}

// columns holds resolved header indexes. Optional columns are -1 and
// read as empty cells.
type columns struct {
	seller      int
	business    int
	category    int
	subcategory int
	region      int
	output      int
}

// resolveColumns maps configured column names to header positions.
// Seller, business, and category are required; subcategory and region
// are optional. The output column is appended when absent.
func resolveColumns(t *recordio.Table, cfg config.ColumnsConfig) (columns, error) {
	required := func(name string) (int, error) {
		idx := t.ColumnIndex(name)
		if idx < 0 {
			return -1, &MissingColumnError{Column: name, Header: t.Header}
		}
		return idx, nil
	}

	seller, err := required(cfg.Seller)
	if err != nil {
		return columns{}, err
	}
	business, err := required(cfg.Business)
	if err != nil {
		return columns{}, err
	}
	category, err := required(cfg.Category)
	if err != nil {
		return columns{}, err
	}

	return columns{
		seller:      seller,
		business:    business,
		category:    category,
		subcategory: t.ColumnIndex(cfg.Subcategory),
		region:      t.ColumnIndex(cfg.Region),
		output:      t.EnsureColumn(cfg.Output),
	}, nil
}

// partition splits data rows into entities to process, counting
// already-resolved rows (non-empty output cell) and nameless rows as
// skipped. Skipped rows are never touched again.
func partition(t *recordio.Table, cols columns, stats *model.RunStats) []model.Entity {
	var toProcess []model.Entity
	for i := range t.Rows {
		if strings.TrimSpace(t.Cell(i, cols.output)) != "" {
			stats.Skipped.Add(1)
			monitoring.RowsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		e := model.Entity{
			SellerName:   strings.TrimSpace(t.Cell(i, cols.seller)),
			BusinessName: strings.TrimSpace(t.Cell(i, cols.business)),
			Category:     strings.TrimSpace(t.Cell(i, cols.category)),
			Subcategory:  strings.TrimSpace(t.Cell(i, cols.subcategory)),
			Region:       strings.TrimSpace(t.Cell(i, cols.region)),
			Row:          t.Rows[i],
			Index:        i,
		}
		if e.SellerName == "" && e.BusinessName == "" {
			stats.Skipped.Add(1)
			monitoring.RowsTotal.WithLabelValues("skipped").Inc()
			zap.L().Debug("pipeline: skipping nameless row", zap.Int("row", i))
			continue
		}
		toProcess = append(toProcess, e)
	}
	return toProcess
}

func (p *Pipeline) journalStart(ctx context.Context, inputPath, outputPath string) string {
	if p.store == nil {
		return ""
	}
	run, err := p.store.CreateRun(ctx, model.Run{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Backends:   p.gatherer.searcher.Names(),
		BatchSize:  p.batchSize,
	})
	if err != nil {
		zap.L().Warn("pipeline: journal create failed", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Pipeline) journalFinish(runID string, stats model.StatsSnapshot, runErr error) {
	if p.store == nil || runID == "" {
		return
	}
	status := model.RunStatusCompleted
	msg := ""
	if runErr != nil {
		status = model.RunStatusFailed
		msg = runErr.Error()
	}

	// The run context may already be cancelled; the journal update
	// still has to land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.CompleteRun(ctx, runID, status, stats, msg); err != nil {
		zap.L().Warn("pipeline: journal complete failed", zap.Error(err))
	}
}
