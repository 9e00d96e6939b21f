package configs

import (
	"github.com/spf13/viper"

	acfg "github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/compliance"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

// EnvPrefix prefixes every environment override, e.g.
// HARMONIC_ANALYZER_ANALYSIS_PRESET
const EnvPrefix = "HARMONIC_ANALYZER"

// setDefaults registers a default for every key so that environment
// overrides of any key reach Unmarshal
func setDefaults(v *viper.Viper) {
	defaults := GetDefaultConfig()

	// Application defaults
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("log_level", defaults.LogLevel)

	// Analysis defaults
	v.SetDefault("analysis.preset", defaults.Analysis.Preset)
	v.SetDefault("analysis.num_harmonics", defaults.Analysis.NumHarmonics)
	v.SetDefault("analysis.fundamental_min_hz", defaults.Analysis.FundamentalMinHz)
	v.SetDefault("analysis.fundamental_max_hz", defaults.Analysis.FundamentalMaxHz)

	// Channel defaults
	setChannelDefaults(v, "channels.ch1", defaults.Channels.CH1)
	setChannelDefaults(v, "channels.ch2", defaults.Channels.CH2)

	// Differential defaults
	v.SetDefault("differential.enabled", defaults.Differential.Enabled)
	setFilterDefaults(v, "differential.filter", defaults.Differential.Filter)

	// Batch defaults
	v.SetDefault("batch.max_concurrency", defaults.Batch.MaxConcurrency)
	v.SetDefault("batch.pattern", defaults.Batch.Pattern)

	// Image calibration defaults
	v.SetDefault("image.channel", defaults.Image.Channel)
	v.SetDefault("image.x0", defaults.Image.X0)
	v.SetDefault("image.x1", defaults.Image.X1)
	v.SetDefault("image.y0", defaults.Image.Y0)
	v.SetDefault("image.y1", defaults.Image.Y1)
	v.SetDefault("image.time_scale", defaults.Image.TimeScale)
	v.SetDefault("image.volt_scale", defaults.Image.VoltScale)

	// Output defaults
	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.precision", defaults.Output.Precision)
	v.SetDefault("output.pretty", defaults.Output.Pretty)
	v.SetDefault("output.report_file", defaults.Output.ReportFile)
	v.SetDefault("output.export_file", defaults.Output.ExportFile)
	v.SetDefault("output.metrics_file", defaults.Output.MetricsFile)
}

func setChannelDefaults(v *viper.Viper, prefix string, ch ChannelConfig) {
	v.SetDefault(prefix+".enabled", ch.Enabled)
	v.SetDefault(prefix+".signal_type", ch.SignalType)
	v.SetDefault(prefix+".ratio", ch.Ratio)
	v.SetDefault(prefix+".ratio_preset", ch.RatioPreset)
	setFilterDefaults(v, prefix+".filter", ch.Filter)
}

func setFilterDefaults(v *viper.Viper, prefix string, f FilterConfig) {
	v.SetDefault(prefix+".enabled", f.Enabled)
	v.SetDefault(prefix+".kind", f.Kind)
	v.SetDefault(prefix+".cutoff_or_window", f.CutoffOrWindow)
}

// GetDefaultConfig returns the default configuration: both channels as
// 20 A/V current probes, unfiltered, scored against IEC Class A
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:  false,
		LogLevel: "info",

		Analysis:     GetDefaultAnalysisConfig(),
		Channels:     ChannelsConfig{CH1: GetDefaultChannelConfig(), CH2: GetDefaultChannelConfig()},
		Differential: GetDefaultDifferentialConfig(),
		Batch:        GetDefaultBatchConfig(),
		Image:        GetDefaultImageConfig(),
		Output:       GetDefaultOutputConfig(),
	}
}

// GetDefaultAnalysisConfig returns default spectral analysis settings. The
// harmonic count is left at 0 so it follows the preset.
func GetDefaultAnalysisConfig() AnalysisConfig {
	d := acfg.DefaultAnalysisConfig()
	return AnalysisConfig{
		Preset:           d.Preset,
		NumHarmonics:     0,
		FundamentalMinHz: d.FundamentalMinHz,
		FundamentalMaxHz: d.FundamentalMaxHz,
	}
}

// GetDefaultChannelConfig returns default probe settings
func GetDefaultChannelConfig() ChannelConfig {
	d := acfg.DefaultChannelConfig()
	return ChannelConfig{
		Enabled:    d.Enabled,
		SignalType: string(d.SignalType),
		Ratio:      d.Ratio,
		Filter:     fromAnalysisFilter(d.Filter),
	}
}

// GetDefaultDifferentialConfig returns default derived channel settings
func GetDefaultDifferentialConfig() DifferentialConfig {
	d := acfg.DefaultDifferentialConfig()
	return DifferentialConfig{
		Enabled: d.Enabled,
		Filter:  fromAnalysisFilter(d.Filter),
	}
}

// GetDefaultBatchConfig returns sequential batch settings
func GetDefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 1,
		Pattern:        "*.csv",
	}
}

// GetDefaultImageConfig returns the default screenshot calibration
func GetDefaultImageConfig() ImageConfig {
	c := waveform.DefaultCalibration()
	return ImageConfig{
		Channel:   string(waveform.ChannelCH1),
		X0:        c.X0,
		X1:        c.X1,
		Y0:        c.Y0,
		Y1:        c.Y1,
		TimeScale: c.TimeScale,
		VoltScale: c.VoltScale,
	}
}

// GetDefaultOutputConfig returns default output formatting settings
func GetDefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Format:    "table",
		Precision: 2,
		Pretty:    true,
	}
}

// PresetNames lists the analysis presets a config may name
func PresetNames() []string {
	var names []string
	for _, p := range compliance.Presets() {
		names = append(names, p.Name)
	}
	return names
}

func fromAnalysisFilter(f acfg.FilterConfig) FilterConfig {
	return FilterConfig{
		Enabled:        f.Enabled,
		Kind:           string(f.Kind),
		CutoffOrWindow: f.CutoffOrWindow,
	}
}
