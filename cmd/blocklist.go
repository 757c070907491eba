package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/blocklist"
)

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Inspect the marketplace domain blocklist",
}

var blocklistCheckCmd = &cobra.Command{
	Use:   "check <host-or-url>...",
	Short: "Show whether hosts would be filtered out of search evidence",
	Long: `Checks each argument against the built-in blocklist plus the overlay
file from config, printing the matched rule for blocked hosts. Accepts
bare hosts or full URLs.

Examples:
  enrich-cli blocklist check amazon.com comfier.com
  enrich-cli blocklist check https://shop.example.myshopify.com/products/x`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		block, err := blocklist.FromOverlay(cfg.Blocklist.File)
		if err != nil {
			return err
		}
		formatBlocklistCheck(os.Stdout, block, args)
		return nil
	},
}

func init() {
	blocklistCmd.AddCommand(blocklistCheckCmd)
	rootCmd.AddCommand(blocklistCmd)
}

func formatBlocklistCheck(out io.Writer, block *blocklist.Blocklist, args []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INPUT\tDOMAIN\tVERDICT\tRULE")

	for _, arg := range args {
		domain := blocklist.ExtractDomain(arg)
		if domain == "" {
			// Bare hosts parse as a path, not a host.
			domain = blocklist.ExtractDomain("https://" + arg)
		}
		if domain == "" {
			_, _ = fmt.Fprintf(w, "%s\t-\tunparseable\t-\n", arg)
			continue
		}
		if rule, ok := block.Match(domain); ok {
			_, _ = fmt.Fprintf(w, "%s\t%s\tblocked\t%s\n", arg, domain, rule)
		} else {
			_, _ = fmt.Fprintf(w, "%s\t%s\tallowed\t-\n", arg, domain)
		}
	}
	_ = w.Flush()
}
