package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/harmonic-analyzer/configs"
	"github.com/RyanBlaney/harmonic-analyzer/internal/app"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

// Terminal colors for the completion banner
const (
	ColorReset = "\033[0m"
	ColorRed   = "\033[31m"
	ColorGreen = "\033[32m"
)

var (
	configTestWriteExample string
	configTestProfile      string
)

// configTestCmd represents the config test command
var configTestCmd = &cobra.Command{
	Use:   "config-test",
	Short: "Test and display all configuration values",
	Long: `Test configuration loading and display all values to verify proper parsing.

This command loads the configuration, validates it and displays every value
in a structured format. It can also write an example run profile or
validate an existing one.

Examples:
  # Test with default config file
  harmonic-analyzer config-test

  # Test with specific config file
  harmonic-analyzer --config /path/to/harmonic-analyzer.yaml config-test

  # Write an example run profile
  harmonic-analyzer config-test --write-example bench.yaml

  # Validate a run profile
  harmonic-analyzer config-test --profile bench.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigTest,
}

func init() {
	rootCmd.AddCommand(configTestCmd)

	configTestCmd.Flags().StringVar(&configTestWriteExample, "write-example", "",
		"write an example run profile to this path")
	configTestCmd.Flags().StringVar(&configTestProfile, "profile", "",
		"validate a run profile against the defaults")
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	if configTestWriteExample != "" {
		if err := app.GenerateExampleConfig(configTestWriteExample); err != nil {
			return err
		}
		fmt.Fprintf(w, "Example run profile written to %s\n", configTestWriteExample)
		return nil
	}

	if configTestProfile != "" {
		return runProfileTest(w, configTestProfile)
	}

	fmt.Fprintln(w, "HARMONIC ANALYZER CONFIGURATION TEST")
	fmt.Fprintln(w, strings.Repeat("=", 80))

	// Load configuration
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	printSection(w, "APPLICATION SETTINGS")
	printKeyValue(w, "Verbose", fmt.Sprintf("%t", config.Verbose))
	printKeyValue(w, "Log Level", config.LogLevel)

	printSection(w, "ANALYSIS CONFIGURATION")
	printKeyValue(w, "Preset", config.Analysis.Preset)
	harmonics := fmt.Sprintf("%d", config.Analysis.NumHarmonics)
	if config.Analysis.NumHarmonics == 0 {
		harmonics = "preset default"
	}
	printKeyValue(w, "Harmonics", harmonics)
	printKeyValue(w, "Fundamental Band", fmt.Sprintf("%.1f - %.1f Hz",
		config.Analysis.FundamentalMinHz, config.Analysis.FundamentalMaxHz))

	printSection(w, "CHANNELS")
	for _, ch := range []struct {
		name string
		cfg  configs.ChannelConfig
	}{{"CH1", config.Channels.CH1}, {"CH2", config.Channels.CH2}} {
		printSubsection(w, ch.name)
		printKeyValue(w, "  Enabled", fmt.Sprintf("%t", ch.cfg.Enabled))
		printKeyValue(w, "  Signal Type", ch.cfg.SignalType)
		printKeyValue(w, "  Ratio", fmt.Sprintf("%g", ch.cfg.Ratio))
		if ch.cfg.RatioPreset != "" {
			printKeyValue(w, "  Ratio Preset", ch.cfg.RatioPreset)
		}
		printFilter(w, "  Filter", ch.cfg.Filter)
	}

	printSection(w, "DIFFERENTIAL CONFIGURATION")
	printKeyValue(w, "Enabled", fmt.Sprintf("%t", config.Differential.Enabled))
	printFilter(w, "Filter", config.Differential.Filter)

	printSection(w, "BATCH CONFIGURATION")
	printKeyValue(w, "Max Concurrency", fmt.Sprintf("%d", config.Batch.MaxConcurrency))
	printKeyValue(w, "Pattern", config.Batch.Pattern)

	printSection(w, "IMAGE CONFIGURATION")
	printKeyValue(w, "Channel", config.Image.Channel)
	printKeyValue(w, "Plot X", fmt.Sprintf("%d - %d px", config.Image.X0, config.Image.X1))
	printKeyValue(w, "Plot Y", fmt.Sprintf("%d - %d px", config.Image.Y0, config.Image.Y1))
	printKeyValue(w, "Time Scale", fmt.Sprintf("%g s/div", config.Image.TimeScale))
	printKeyValue(w, "Volt Scale", fmt.Sprintf("%g V/div", config.Image.VoltScale))

	printSection(w, "OUTPUT CONFIGURATION")
	printKeyValue(w, "Format", config.Output.Format)
	printKeyValue(w, "Precision", fmt.Sprintf("%d", config.Output.Precision))
	printKeyValue(w, "Pretty", fmt.Sprintf("%t", config.Output.Pretty))
	printKeyValue(w, "Report File", orNone(config.Output.ReportFile))
	printKeyValue(w, "Export File", orNone(config.Output.ExportFile))
	printKeyValue(w, "Metrics File", orNone(config.Output.MetricsFile))

	fmt.Fprintln(w)
	if err := configs.ValidateConfig(config); err != nil {
		fmt.Fprintln(w, ColorRed+strings.Repeat("-", 80))
		fmt.Fprintf(w, "CONFIGURATION INVALID: %v\n", err)
		fmt.Fprintln(w, strings.Repeat("=", 80)+ColorReset)
		return err
	}

	fmt.Fprintln(w, ColorGreen+strings.Repeat("-", 80))
	fmt.Fprintln(w, "CONFIGURATION TEST COMPLETED SUCCESSFULLY")
	fmt.Fprintf(w, "Config file: %s\n", orNone(viper.ConfigFileUsed()))
	fmt.Fprintln(w, strings.Repeat("=", 80)+ColorReset)

	return nil
}

func runProfileTest(w io.Writer, path string) error {
	merged, err := app.ValidateConfig(path)
	if err != nil {
		return err
	}

	printSection(w, "RUN PROFILE")
	printKeyValue(w, "File", path)
	printKeyValue(w, "Preset", merged.Analysis.Preset)
	printKeyValue(w, "Harmonics", fmt.Sprintf("%d", merged.Analysis.NumHarmonics))
	for _, id := range []waveform.ChannelID{waveform.ChannelCH1, waveform.ChannelCH2} {
		cc, ok := merged.Channels[id]
		if !ok {
			continue
		}
		filter := "none"
		if cc.Filter.Enabled {
			filter = fmt.Sprintf("%s(%g)", cc.Filter.Kind, cc.Filter.CutoffOrWindow)
		}
		printKeyValue(w, "Channel "+string(id), fmt.Sprintf("enabled=%t type=%s ratio=%g filter=%s",
			cc.Enabled, cc.SignalType, cc.Ratio, filter))
	}
	printKeyValue(w, "Differential", fmt.Sprintf("%t", merged.Differential.Enabled))
	printKeyValue(w, "Max Concurrency", fmt.Sprintf("%d", merged.MaxConcurrency))

	fmt.Fprintln(w)
	fmt.Fprintln(w, ColorGreen+"RUN PROFILE IS VALID"+ColorReset)
	return nil
}

func printFilter(w io.Writer, label string, f configs.FilterConfig) {
	if !f.Enabled {
		printKeyValue(w, label, "none")
		return
	}
	printKeyValue(w, label, fmt.Sprintf("%s (%g)", f.Kind, f.CutoffOrWindow))
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

func printSubsection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n  %s\n", title)
}

func printKeyValue(w io.Writer, key, value string) {
	if value == "" {
		fmt.Fprintf(w, "%-35s\n", key)
	} else {
		fmt.Fprintf(w, "%-35s %s\n", key+":", value)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
