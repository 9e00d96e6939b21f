package configs

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	acfg "github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/compliance"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose  bool   `mapstructure:"verbose"`
	LogLevel string `mapstructure:"log_level"`

	// Spectral search and limit selection
	Analysis AnalysisConfig `mapstructure:"analysis"`

	// Probe setup per scope channel
	Channels ChannelsConfig `mapstructure:"channels"`

	// Derived CH1-CH2 channel
	Differential DifferentialConfig `mapstructure:"differential"`

	// Batch execution
	Batch BatchConfig `mapstructure:"batch"`

	// Screenshot trace extraction
	Image ImageConfig `mapstructure:"image"`

	// Output configuration
	Output OutputConfig `mapstructure:"output"`
}

// AnalysisConfig contains spectral analysis settings
type AnalysisConfig struct {
	Preset           string  `mapstructure:"preset"`
	NumHarmonics     int     `mapstructure:"num_harmonics"`
	FundamentalMinHz float64 `mapstructure:"fundamental_min_hz"`
	FundamentalMaxHz float64 `mapstructure:"fundamental_max_hz"`
}

// ChannelsConfig contains both scope channels
type ChannelsConfig struct {
	CH1 ChannelConfig `mapstructure:"ch1"`
	CH2 ChannelConfig `mapstructure:"ch2"`
}

// ChannelConfig contains one channel's probe and filter settings. A
// non-empty RatioPreset overrides Ratio.
type ChannelConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	SignalType  string       `mapstructure:"signal_type"`
	Ratio       float64      `mapstructure:"ratio"`
	RatioPreset string       `mapstructure:"ratio_preset"`
	Filter      FilterConfig `mapstructure:"filter"`
}

// FilterConfig contains a filter selection
type FilterConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Kind           string  `mapstructure:"kind"`
	CutoffOrWindow float64 `mapstructure:"cutoff_or_window"`
}

// DifferentialConfig contains the derived channel settings
type DifferentialConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Filter  FilterConfig `mapstructure:"filter"`
}

// BatchConfig contains batch execution settings
type BatchConfig struct {
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	Pattern        string `mapstructure:"pattern"`
}

// ImageConfig contains the screenshot calibration and the channel whose
// probe settings apply to the extracted trace
type ImageConfig struct {
	Channel   string  `mapstructure:"channel"`
	X0        int     `mapstructure:"x0"`
	X1        int     `mapstructure:"x1"`
	Y0        int     `mapstructure:"y0"`
	Y1        int     `mapstructure:"y1"`
	TimeScale float64 `mapstructure:"time_scale"`
	VoltScale float64 `mapstructure:"volt_scale"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Format      string `mapstructure:"format"`
	Precision   int    `mapstructure:"precision"`
	Pretty      bool   `mapstructure:"pretty"`
	ReportFile  string `mapstructure:"report_file"`
	ExportFile  string `mapstructure:"export_file"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom fills unset keys with defaults and decodes v
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if _, err := compliance.LookupPreset(config.Analysis.Preset); err != nil {
		return err
	}

	// 0 takes the preset's count
	if n := config.Analysis.NumHarmonics; n != 0 && (n < acfg.MinHarmonics || n > acfg.MaxHarmonics) {
		return fmt.Errorf("analysis.num_harmonics must be between %d and %d", acfg.MinHarmonics, acfg.MaxHarmonics)
	}

	if config.Analysis.FundamentalMinHz <= 0 || config.Analysis.FundamentalMaxHz <= config.Analysis.FundamentalMinHz {
		return fmt.Errorf("fundamental search band must satisfy 0 < min < max")
	}

	channels, err := config.ChannelConfigs()
	if err != nil {
		return err
	}
	enabled := 0
	for id, cc := range channels {
		if !cc.Enabled {
			continue
		}
		enabled++
		if err := cc.Validate(); err != nil {
			return fmt.Errorf("channels.%s: %w", strings.ToLower(string(id)), err)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one channel must be enabled")
	}

	if _, err := config.DifferentialConfig(); err != nil {
		return err
	}

	if config.Batch.MaxConcurrency < 1 {
		return fmt.Errorf("batch max concurrency must be at least 1")
	}

	if err := config.Calibration().Validate(); err != nil {
		return err
	}
	if _, err := waveformChannel(config.Image.Channel); err != nil {
		return err
	}

	if _, err := output.NewFormatter(config.Output.Format); err != nil {
		return err
	}
	if config.Output.Precision < 0 {
		return fmt.Errorf("output precision cannot be negative")
	}

	return nil
}

// AnalysisSettings converts the analysis section for the analyzer
func (c *Config) AnalysisSettings() acfg.AnalysisConfig {
	return acfg.AnalysisConfig{
		Preset:           c.Analysis.Preset,
		NumHarmonics:     c.Analysis.NumHarmonics,
		FundamentalMinHz: c.Analysis.FundamentalMinHz,
		FundamentalMaxHz: c.Analysis.FundamentalMaxHz,
	}
}

// ChannelConfigs converts both channel sections
func (c *Config) ChannelConfigs() (map[waveform.ChannelID]acfg.ChannelConfig, error) {
	ch1, err := c.Channels.CH1.toAnalysis()
	if err != nil {
		return nil, fmt.Errorf("channels.ch1: %w", err)
	}
	ch2, err := c.Channels.CH2.toAnalysis()
	if err != nil {
		return nil, fmt.Errorf("channels.ch2: %w", err)
	}

	return map[waveform.ChannelID]acfg.ChannelConfig{
		waveform.ChannelCH1: ch1,
		waveform.ChannelCH2: ch2,
	}, nil
}

// ImageChannel returns the channel id and probe settings for image traces
func (c *Config) ImageChannel() (waveform.ChannelID, acfg.ChannelConfig, error) {
	id, err := waveformChannel(c.Image.Channel)
	if err != nil {
		return "", acfg.ChannelConfig{}, err
	}
	channels, err := c.ChannelConfigs()
	if err != nil {
		return "", acfg.ChannelConfig{}, err
	}
	cc := channels[id]
	cc.Enabled = true
	return id, cc, nil
}

// DifferentialConfig converts the differential section
func (c *Config) DifferentialConfig() (acfg.DifferentialConfig, error) {
	filter, err := c.Differential.Filter.toAnalysis()
	if err != nil {
		return acfg.DifferentialConfig{}, fmt.Errorf("differential.filter: %w", err)
	}
	if err := filter.Validate(); err != nil {
		return acfg.DifferentialConfig{}, fmt.Errorf("differential.filter: %w", err)
	}
	return acfg.DifferentialConfig{Enabled: c.Differential.Enabled, Filter: filter}, nil
}

// Calibration converts the image section
func (c *Config) Calibration() waveform.Calibration {
	return waveform.Calibration{
		X0:        c.Image.X0,
		X1:        c.Image.X1,
		Y0:        c.Image.Y0,
		Y1:        c.Image.Y1,
		TimeScale: c.Image.TimeScale,
		VoltScale: c.Image.VoltScale,
	}
}

func (c ChannelConfig) toAnalysis() (acfg.ChannelConfig, error) {
	signalType, err := acfg.ParseSignalType(c.SignalType)
	if err != nil {
		return acfg.ChannelConfig{}, err
	}

	ratio := c.Ratio
	if c.RatioPreset != "" {
		r, ok := acfg.LookupRatioPreset(c.RatioPreset)
		if !ok {
			return acfg.ChannelConfig{}, fmt.Errorf("unknown ratio preset %q", c.RatioPreset)
		}
		ratio = r
	}

	filter, err := c.Filter.toAnalysis()
	if err != nil {
		return acfg.ChannelConfig{}, err
	}

	return acfg.ChannelConfig{
		Enabled:    c.Enabled,
		SignalType: signalType,
		Ratio:      ratio,
		Filter:     filter,
	}, nil
}

func (f FilterConfig) toAnalysis() (acfg.FilterConfig, error) {
	kind, err := acfg.ParseFilterKind(f.Kind)
	if err != nil {
		return acfg.FilterConfig{}, err
	}
	return acfg.FilterConfig{
		Enabled:        f.Enabled,
		Kind:           kind,
		CutoffOrWindow: f.CutoffOrWindow,
	}, nil
}

func waveformChannel(name string) (waveform.ChannelID, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CH1", "":
		return waveform.ChannelCH1, nil
	case "CH2":
		return waveform.ChannelCH2, nil
	default:
		return "", fmt.Errorf("unknown channel %q, expected CH1 or CH2", name)
	}
}
