package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/harmonic-analyzer/internal/app"
)

// Flags shared by analyze, image and batch
var (
	runProfile         string
	runPreset          string
	runHarmonics       int
	runReportFile      string
	runExportFile      string
	runOutputFile      string
	runNoDifferential  bool
	runFailOnViolation bool
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&runProfile, "profile", "p", "",
		"analysis run profile (YAML or JSON)")
	cmd.Flags().StringVar(&runPreset, "preset", "",
		"analysis preset (iec61000-3-2-class-a, quick, wideband)")
	cmd.Flags().IntVar(&runHarmonics, "harmonics", 0,
		"number of harmonics to analyze, 10-50 (default follows the preset)")
	cmd.Flags().StringVar(&runReportFile, "report", "",
		"write the text report to this file")
	cmd.Flags().StringVar(&runOutputFile, "out", "",
		"write formatted output to this file instead of stdout")
	cmd.Flags().BoolVar(&runNoDifferential, "no-diff", false,
		"skip the derived CH1-CH2 channel")
	cmd.Flags().BoolVar(&runFailOnViolation, "fail-on-violation", false,
		"exit non-zero when a current channel exceeds its limits")
}

// newRunContext builds the application context from the shared flags
func newRunContext(cmd *cobra.Command, mode app.Mode, inputs []string) *app.Context {
	ctx := &app.Context{
		Mode:            mode,
		Inputs:          inputs,
		ConfigFile:      runProfile,
		OutputFile:      runOutputFile,
		ReportFile:      runReportFile,
		ExportFile:      runExportFile,
		Preset:          runPreset,
		NumHarmonics:    runHarmonics,
		NoDifferential:  runNoDifferential,
		FailOnViolation: runFailOnViolation,
		Verbose:         verbose,
		Quiet:           quiet,
		Stdout:          cmd.OutOrStdout(),
	}

	// the config value already carries the flag when it is left unset
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		ctx.OutputFormat = outputFormat
	}

	return ctx
}

func runApp(cmd *cobra.Command, ctx *app.Context) error {
	analyzerApp, err := app.NewAnalyzerApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return analyzerApp.Run(cmd.Context())
}
