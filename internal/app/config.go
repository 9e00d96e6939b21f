package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/harmonic-analyzer/configs"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis"
	acfg "github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

// RunProfile is an analysis run file. Every section is optional; present
// sections replace the application configuration.
type RunProfile struct {
	Name           string                         `json:"name,omitempty" yaml:"name,omitempty"`
	Description    string                         `json:"description,omitempty" yaml:"description,omitempty"`
	Analysis       *acfg.AnalysisConfig           `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Channels       map[string]*acfg.ChannelConfig `json:"channels,omitempty" yaml:"channels,omitempty"`
	Differential   *acfg.DifferentialConfig       `json:"differential,omitempty" yaml:"differential,omitempty"`
	Image          *waveform.Calibration          `json:"image,omitempty" yaml:"image,omitempty"`
	MaxConcurrency int                            `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
}

// RunConfig is the merged configuration of one run
type RunConfig struct {
	Analysis       acfg.AnalysisConfig                       `json:"analysis" yaml:"analysis"`
	Channels       map[waveform.ChannelID]acfg.ChannelConfig `json:"channels" yaml:"channels"`
	Differential   acfg.DifferentialConfig                   `json:"differential" yaml:"differential"`
	Calibration    waveform.Calibration                      `json:"image" yaml:"image"`
	ImageChannel   waveform.ChannelID                        `json:"image_channel" yaml:"image_channel"`
	MaxConcurrency int                                       `json:"max_concurrency" yaml:"max_concurrency"`
	BatchPattern   string                                    `json:"batch_pattern" yaml:"batch_pattern"`
	Output         configs.OutputConfig                      `json:"-" yaml:"-"`
}

// Validate checks the merged configuration
func (c *RunConfig) Validate() error {
	if _, err := analysis.NewAnalyzer(c.Analysis, logging.NewNopLogger()); err != nil {
		return err
	}

	enabled := 0
	for id, cc := range c.Channels {
		if !cc.Enabled {
			continue
		}
		enabled++
		if err := cc.Validate(); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no channel is enabled")
	}

	if err := c.Differential.Filter.Validate(); err != nil {
		return fmt.Errorf("differential: %w", err)
	}
	if err := c.Calibration.Validate(); err != nil {
		return err
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1")
	}
	if _, err := output.NewFormatter(c.Output.Format); err != nil {
		return err
	}
	return nil
}

// loadRunProfileFromFile loads a run profile from a YAML or JSON file
func loadRunProfileFromFile(filePath string) (*RunProfile, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file does not exist: %s", filePath)
	}

	// Determine file format
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return loadRunProfileFromYAML(filePath)
	case ".json":
		return loadRunProfileFromJSON(filePath)
	default:
		// Try YAML first, then JSON
		if profile, err := loadRunProfileFromYAML(filePath); err == nil {
			return profile, nil
		}
		return loadRunProfileFromJSON(filePath)
	}
}

// loadRunProfileFromYAML loads a run profile from a YAML file
func loadRunProfileFromYAML(filePath string) (*RunProfile, error) {
	data, err := readFile(filePath)
	if err != nil {
		return nil, err
	}

	var profile RunProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return &profile, nil
}

// loadRunProfileFromJSON loads a run profile from a JSON file
func loadRunProfileFromJSON(filePath string) (*RunProfile, error) {
	data, err := readFile(filePath)
	if err != nil {
		return nil, err
	}

	var profile RunProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	return &profile, nil
}

func readFile(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// mergeRunConfig layers the application config, the run profile and the
// CLI flags, in that order
func mergeRunConfig(base *configs.Config, profile *RunProfile, ctx *Context) (*RunConfig, error) {
	channels, err := base.ChannelConfigs()
	if err != nil {
		return nil, err
	}
	differential, err := base.DifferentialConfig()
	if err != nil {
		return nil, err
	}
	imageChannel, _, err := base.ImageChannel()
	if err != nil {
		return nil, err
	}

	merged := &RunConfig{
		Analysis:       base.AnalysisSettings(),
		Channels:       channels,
		Differential:   differential,
		Calibration:    base.Calibration(),
		ImageChannel:   imageChannel,
		MaxConcurrency: base.Batch.MaxConcurrency,
		BatchPattern:   base.Batch.Pattern,
		Output:         base.Output,
	}

	if profile != nil {
		if profile.Analysis != nil {
			merged.Analysis = *profile.Analysis
		}
		for name, cc := range profile.Channels {
			if cc == nil {
				continue
			}
			id, err := parseChannelID(name)
			if err != nil {
				return nil, err
			}
			merged.Channels[id] = *cc
		}
		if profile.Differential != nil {
			merged.Differential = *profile.Differential
		}
		if profile.Image != nil {
			merged.Calibration = *profile.Image
		}
		if profile.MaxConcurrency > 0 {
			merged.MaxConcurrency = profile.MaxConcurrency
		}
	}

	// Override with CLI flags
	if ctx.Preset != "" {
		// the harmonic count follows a preset chosen on the command line
		merged.Analysis.Preset = ctx.Preset
		merged.Analysis.NumHarmonics = 0
	}
	if ctx.NumHarmonics > 0 {
		merged.Analysis.NumHarmonics = ctx.NumHarmonics
	}
	if ctx.MaxConcurrent > 0 {
		merged.MaxConcurrency = ctx.MaxConcurrent
	}
	if ctx.OutputFormat != "" {
		merged.Output.Format = ctx.OutputFormat
	}
	if ctx.ReportFile != "" {
		merged.Output.ReportFile = ctx.ReportFile
	}
	if ctx.ExportFile != "" {
		merged.Output.ExportFile = ctx.ExportFile
	}
	if ctx.MetricsFile != "" {
		merged.Output.MetricsFile = ctx.MetricsFile
	}
	if ctx.NoDifferential {
		merged.Differential.Enabled = false
	}
	if ctx.Channel != "" {
		id, err := parseChannelID(ctx.Channel)
		if err != nil {
			return nil, err
		}
		merged.ImageChannel = id
	}

	// the image trace is always analyzed with its channel's probe settings
	imageCC := merged.Channels[merged.ImageChannel]
	if ctx.SignalType != "" {
		signalType, err := acfg.ParseSignalType(ctx.SignalType)
		if err != nil {
			return nil, err
		}
		imageCC.SignalType = signalType
	}
	if ctx.Ratio > 0 {
		imageCC.Ratio = ctx.Ratio
	}
	merged.Channels[merged.ImageChannel] = imageCC

	return merged, nil
}

func parseChannelID(name string) (waveform.ChannelID, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CH1":
		return waveform.ChannelCH1, nil
	case "CH2":
		return waveform.ChannelCH2, nil
	default:
		return "", fmt.Errorf("unknown channel %q, expected CH1 or CH2", name)
	}
}

// GenerateExampleConfig writes an example run profile
func GenerateExampleConfig(outputFile string) error {
	analysisCfg := acfg.DefaultAnalysisConfig()
	ch1 := acfg.DefaultChannelConfig()
	ch2 := acfg.DefaultChannelConfig()
	ch2.SignalType = acfg.SignalVoltage
	differential := acfg.DefaultDifferentialConfig()
	calibration := waveform.DefaultCalibration()

	example := &RunProfile{
		Name:        "bench-supply",
		Description: "CH1 current probe at 20 A/V, CH2 x10 voltage probe",
		Analysis:    &analysisCfg,
		Channels: map[string]*acfg.ChannelConfig{
			"CH1": &ch1,
			"CH2": &ch2,
		},
		Differential:   &differential,
		Image:          &calibration,
		MaxConcurrency: 1,
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateConfig loads a run profile over the default configuration and
// validates the result
func ValidateConfig(configFile string) (*RunConfig, error) {
	profile, err := loadRunProfileFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	merged, err := mergeRunConfig(configs.GetDefaultConfig(), profile, &Context{})
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return merged, nil
}
