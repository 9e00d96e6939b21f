package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/harmonic-analyzer/internal/app"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] capture.csv",
	Short: "Analyze a Rigol CSV capture",
	Long: `Analyze one oscilloscope CSV export for harmonic content.

Each enabled channel is scaled to amperes or volts, optionally filtered, and
its harmonics are compared against the selected limit table. When both
channels carry current a derived CH1-CH2 channel is analyzed as well.

Examples:
  # Analyze a capture with the default Class A preset
  harmonic-analyzer analyze capture.csv

  # Quick check up to H20, with a report and an XLSX harmonic table
  harmonic-analyzer analyze --preset quick --report report.txt --export harmonics.xlsx capture.csv

  # Use a run profile and emit JSON
  harmonic-analyzer analyze --profile bench.yaml -o json capture.csv

  # Fail a CI step when the capture is out of limits
  harmonic-analyzer analyze --fail-on-violation capture.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, newRunContext(cmd, app.ModeAnalyze, args))
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	addRunFlags(analyzeCmd)
	analyzeCmd.Flags().StringVar(&runExportFile, "export", "",
		"export the harmonic table (.csv or .xlsx)")
}
