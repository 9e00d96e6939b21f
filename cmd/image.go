package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/harmonic-analyzer/internal/app"
)

var (
	imageChannel    string
	imageSignalType string
	imageRatio      float64
)

// imageCmd represents the image command
var imageCmd = &cobra.Command{
	Use:   "image [flags] screenshot.png",
	Short: "Extract a trace from a scope screenshot and analyze it",
	Long: `Recover a waveform from a scope screenshot and analyze it.

The plot area and the time and volt scales come from the image section of
the configuration or from a run profile. The extracted trace is analyzed
with the probe settings of the selected channel.

Examples:
  # Analyze the trace as a CH1 current
  harmonic-analyzer image screenshot.png

  # Treat the trace as a voltage on CH2
  harmonic-analyzer image --channel CH2 --signal-type voltage --ratio 10 screenshot.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newRunContext(cmd, app.ModeImage, args)
		ctx.Channel = imageChannel
		ctx.SignalType = imageSignalType
		ctx.Ratio = imageRatio
		return runApp(cmd, ctx)
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addRunFlags(imageCmd)
	imageCmd.Flags().StringVar(&runExportFile, "export", "",
		"export the harmonic table (.csv or .xlsx)")
	imageCmd.Flags().StringVar(&imageChannel, "channel", "",
		"channel whose probe settings apply to the trace (CH1 or CH2)")
	imageCmd.Flags().StringVar(&imageSignalType, "signal-type", "",
		"signal type of the trace (current or voltage)")
	imageCmd.Flags().Float64Var(&imageRatio, "ratio", 0,
		"probe ratio for the trace (A/V for current, multiplier for voltage)")
}
