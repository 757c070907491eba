package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/pipeline"
)

var (
	enrichOutput      string
	enrichLimit       int
	enrichBatchSize   int
	enrichBackends    []string
	enrichConcurrency int
	enrichLinkedIn    bool
	enrichOffline     bool
	enrichNoJournal   bool

	enrichSellerCol      string
	enrichBusinessCol    string
	enrichCategoryCol    string
	enrichSubcategoryCol string
	enrichRegionCol      string
	enrichOutputCol      string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <input-file>",
	Short: "Resolve seller websites for every unresolved row in a spreadsheet",
	Long: `Reads a seller spreadsheet (.csv or .xlsx), searches the web for each
unresolved row, and asks Claude to pick the company website from the
results. The full file is rewritten after every batch, so a killed run
resumes exactly where it stopped: rows with a non-empty output cell are
never reprocessed.

Examples:
  # Annotate in place, all rows
  enrich-cli enrich sellers.csv

  # First 10 rows, separate output file
  enrich-cli enrich sellers.xlsx -o enriched.xlsx --limit 10

  # SerpAPI and Google CSE with the LinkedIn secondary signal
  enrich-cli enrich sellers.csv --backends both --linkedin

  # Fully offline (stub search + stub arbiter, no API keys needed)
  enrich-cli enrich sellers.csv --offline`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyEnrichOverrides(cmd)

		var env *pipelineEnv
		var err error
		if enrichOffline {
			env, err = initOfflinePipeline(ctx, !enrichNoJournal)
		} else {
			env, err = initPipeline(ctx, !enrichNoJournal)
		}
		if err != nil {
			return eris.Wrap(err, "enrich: init pipeline")
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx, pipeline.Options{
			InputPath:  args[0],
			OutputPath: enrichOutput,
			Limit:      enrichLimit,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d rows in %d batches (%s)\n", res.Processed, res.Batches, res.Elapsed.Round(time.Second))
		fmt.Printf("  found:     %d\n", res.Stats.Found)
		fmt.Printf("  not found: %d\n", res.Stats.NotFound)
		fmt.Printf("  skipped:   %d\n", res.Stats.Skipped)
		if res.RunID != "" {
			fmt.Printf("  run id:    %s\n", res.RunID)
		}
		return nil
	},
}

// applyEnrichOverrides copies explicitly-set flags over the loaded
// config so one invocation can deviate without editing the config file.
func applyEnrichOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("batch-size") {
		cfg.Pipeline.BatchSize = enrichBatchSize
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Pipeline.Concurrency = enrichConcurrency
	}
	if cmd.Flags().Changed("linkedin") {
		cfg.Pipeline.LinkedInLookup = enrichLinkedIn
	}
	if cmd.Flags().Changed("backends") {
		cfg.Search.Backends = enrichBackends
	}

	if enrichSellerCol != "" {
		cfg.Columns.Seller = enrichSellerCol
	}
	if enrichBusinessCol != "" {
		cfg.Columns.Business = enrichBusinessCol
	}
	if enrichCategoryCol != "" {
		cfg.Columns.Category = enrichCategoryCol
	}
	if enrichSubcategoryCol != "" {
		cfg.Columns.Subcategory = enrichSubcategoryCol
	}
	if enrichRegionCol != "" {
		cfg.Columns.Region = enrichRegionCol
	}
	if enrichOutputCol != "" {
		cfg.Columns.Output = enrichOutputCol
	}
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichOutput, "output", "o", "", "output file path (default: annotate input in place)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max unresolved rows to process (0 = all)")
	enrichCmd.Flags().IntVar(&enrichBatchSize, "batch-size", 0, "rows per arbitration batch (default from config)")
	enrichCmd.Flags().StringSliceVar(&enrichBackends, "backends", nil, "search backends in call order: serp, google, jina, or both (default from config)")
	enrichCmd.Flags().IntVar(&enrichConcurrency, "concurrency", 0, "max entities gathered in parallel (default from config)")
	enrichCmd.Flags().BoolVar(&enrichLinkedIn, "linkedin", false, "gather a LinkedIn company lookup as a secondary signal")
	enrichCmd.Flags().BoolVar(&enrichOffline, "offline", false, "use stub clients (no API keys needed)")
	enrichCmd.Flags().BoolVar(&enrichNoJournal, "no-journal", false, "disable run journaling")

	enrichCmd.Flags().StringVar(&enrichSellerCol, "seller-col", "", "seller name column header (default from config)")
	enrichCmd.Flags().StringVar(&enrichBusinessCol, "business-col", "", "legal business name column header (default from config)")
	enrichCmd.Flags().StringVar(&enrichCategoryCol, "category-col", "", "category column header (default from config)")
	enrichCmd.Flags().StringVar(&enrichSubcategoryCol, "subcategory-col", "", "subcategory column header (default from config)")
	enrichCmd.Flags().StringVar(&enrichRegionCol, "region-col", "", "region/state column header (default from config)")
	enrichCmd.Flags().StringVar(&enrichOutputCol, "output-col", "", "output column header (default from config)")

	rootCmd.AddCommand(enrichCmd)
}
