package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	acfg "github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/compliance"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
)

var limitsPreset string

// limitsCmd represents the limits command
var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show analysis presets, limit tables and probe ratios",
	Long: `Show the built-in analysis presets, the harmonic current limits of a
preset and the named current-probe ratios.

Examples:
  # List presets with the Class A limit table
  harmonic-analyzer limits

  # Limits of the quick preset as JSON
  harmonic-analyzer limits --preset quick -o json`,
	Args: cobra.NoArgs,
	RunE: runLimits,
}

func init() {
	rootCmd.AddCommand(limitsCmd)

	limitsCmd.Flags().StringVar(&limitsPreset, "preset", "iec61000-3-2-class-a",
		"preset whose limit table is shown")
}

// limitRow is one harmonic limit
type limitRow struct {
	Order   int     `json:"order" yaml:"order"`
	LimitA  float64 `json:"limit_a" yaml:"limit_a"`
	LimitMA float64 `json:"limit_ma" yaml:"limit_ma"`
}

type limitsView struct {
	Presets      []compliance.Preset `json:"presets" yaml:"presets"`
	Preset       string              `json:"preset" yaml:"preset"`
	LimitTable   string              `json:"limit_table" yaml:"limit_table"`
	Limits       []limitRow          `json:"limits" yaml:"limits"`
	RatioPresets []acfg.RatioPreset  `json:"ratio_presets" yaml:"ratio_presets"`
}

func runLimits(cmd *cobra.Command, args []string) error {
	preset, err := compliance.LookupPreset(limitsPreset)
	if err != nil {
		return err
	}

	view := limitsView{
		Presets:      compliance.Presets(),
		Preset:       preset.Name,
		LimitTable:   preset.Limits.Name(),
		RatioPresets: acfg.RatioPresets(),
	}
	for _, order := range preset.Limits.Orders() {
		limit := preset.Limits.Limit(order)
		view.Limits = append(view.Limits, limitRow{Order: order, LimitA: limit, LimitMA: limit * 1000})
	}

	format := strings.ToLower(viper.GetString("output.format"))
	if format == "json" || format == "yaml" || format == "yml" {
		formatter, err := output.NewFormatter(format)
		if err != nil {
			return err
		}
		data, err := formatter.Format(view, true)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "PRESET\tHARMONICS\tDESCRIPTION")
	for _, p := range view.Presets {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Name, p.NumHarmonics, p.Description)
	}

	fmt.Fprintf(tw, "\n%s (%s)\n", view.LimitTable, view.Preset)
	fmt.Fprintln(tw, "ORDER\tLIMIT(A)\tLIMIT(mA)")
	for _, r := range view.Limits {
		fmt.Fprintf(tw, "H%d\t%.3f\t%.1f\n", r.Order, r.LimitA, r.LimitMA)
	}

	fmt.Fprintln(tw, "\nPROBE\tRATIO(A/V)")
	for _, r := range view.RatioPresets {
		fmt.Fprintf(tw, "%s\t%g\n", r.Name, r.Ratio)
	}

	return tw.Flush()
}
