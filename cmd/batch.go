package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/harmonic-analyzer/internal/app"
)

var (
	batchMaxConcurrency int
	batchMetricsFile    string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [flags] files-or-dirs...",
	Short: "Analyze many CSV captures",
	Long: `Analyze a set of CSV captures with one shared configuration.

Directories are expanded with the batch pattern from the configuration
(default *.csv). A file that fails to load or analyze is reported with its
error and does not stop the others. Results keep the input order.

Examples:
  # Analyze every capture in a directory
  harmonic-analyzer batch ./captures

  # Four workers, a batch report and Prometheus metrics
  harmonic-analyzer batch --max-concurrency 4 --report batch.txt --metrics-file batch.prom ./captures

  # Per-channel CSV summary
  harmonic-analyzer batch -o csv a.csv b.csv c.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newRunContext(cmd, app.ModeBatch, args)
		ctx.MaxConcurrent = batchMaxConcurrency
		ctx.MetricsFile = batchMetricsFile
		return runApp(cmd, ctx)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addRunFlags(batchCmd)
	batchCmd.Flags().IntVar(&batchMaxConcurrency, "max-concurrency", 0,
		"files analyzed in parallel (default from config, 1)")
	batchCmd.Flags().StringVar(&batchMetricsFile, "metrics-file", "",
		"write Prometheus text-format metrics to this file")
}
