package config

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

// SignalType is the physical quantity a channel measures
type SignalType string

const (
	SignalCurrent SignalType = "current"
	SignalVoltage SignalType = "voltage"
	SignalMixed   SignalType = "mixed" // derived from channels of different types
)

// Unit returns the base unit of the signal type
func (t SignalType) Unit() string {
	switch t {
	case SignalCurrent:
		return "A"
	case SignalVoltage:
		return "V"
	default:
		return "V/A"
	}
}

// ParseSignalType accepts current/voltage in any case
func ParseSignalType(s string) (SignalType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "current", "i", "a":
		return SignalCurrent, nil
	case "voltage", "v":
		return SignalVoltage, nil
	default:
		return "", common.NewInvalidConfiguration(fmt.Sprintf("unknown signal type %q", s), nil)
	}
}

// FilterKind selects the conditioning filter
type FilterKind string

const (
	FilterLowPass   FilterKind = "lowpass"
	FilterSmooth    FilterKind = "savgol"
	FilterMovingAvg FilterKind = "moving_avg"
)

// ParseFilterKind accepts the canonical names and a few aliases
func ParseFilterKind(s string) (FilterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lowpass", "low_pass", "butterworth":
		return FilterLowPass, nil
	case "savgol", "smooth", "savitzky_golay":
		return FilterSmooth, nil
	case "moving_avg", "moving_average", "movavg":
		return FilterMovingAvg, nil
	default:
		return "", common.NewInvalidConfiguration(fmt.Sprintf("unknown filter kind %q", s), nil)
	}
}

// Filter defaults
const (
	DefaultChannelCutoffHz      = 2500.0
	DefaultDifferentialCutoffHz = 500.0
	DefaultFilterWindow         = 51
	DefaultPolyOrder            = 3
	ButterworthOrder            = 4
)

// FilterConfig is the serializable form of a filter choice. For low-pass
// the value is a cutoff in Hz; differential smoothing filters read it as a
// window length.
type FilterConfig struct {
	Enabled        bool       `json:"enabled" yaml:"enabled"`
	Kind           FilterKind `json:"kind" yaml:"kind"`
	CutoffOrWindow float64    `json:"cutoff_or_window" yaml:"cutoff_or_window"`
}

// ChannelConfig describes how raw probe volts become a physical signal
type ChannelConfig struct {
	Enabled    bool         `json:"enabled" yaml:"enabled"`
	SignalType SignalType   `json:"signal_type" yaml:"signal_type"`
	Ratio      float64      `json:"ratio_a_per_v" yaml:"ratio_a_per_v"` // only used for current
	Filter     FilterConfig `json:"filter" yaml:"filter"`
}

// VoltageProbeFactor scales voltage channels (x10 probe)
const VoltageProbeFactor = 10.0

// Scale returns the multiplier applied to raw samples
func (c ChannelConfig) Scale() float64 {
	if c.SignalType == SignalCurrent {
		return c.Ratio
	}
	return VoltageProbeFactor
}

// Validate checks channel settings
func (c ChannelConfig) Validate() error {
	switch c.SignalType {
	case SignalCurrent:
		if c.Ratio <= 0 {
			return common.NewInvalidConfiguration(fmt.Sprintf("current ratio must be positive, got %g A/V", c.Ratio), nil)
		}
	case SignalVoltage:
	default:
		return common.NewInvalidConfiguration(fmt.Sprintf("unknown signal type %q", c.SignalType), nil)
	}
	return c.Filter.Validate()
}

// Validate checks the filter selection
func (f FilterConfig) Validate() error {
	if !f.Enabled {
		return nil
	}
	switch f.Kind {
	case FilterLowPass, FilterSmooth, FilterMovingAvg:
	default:
		return common.NewInvalidConfiguration(fmt.Sprintf("unknown filter kind %q", f.Kind), nil)
	}
	if f.CutoffOrWindow < 0 {
		return common.NewInvalidConfiguration("filter cutoff/window cannot be negative", nil)
	}
	return nil
}

// Harmonic count bounds
const (
	MinHarmonics     = 10
	MaxHarmonics     = 50
	DefaultHarmonics = 40
)

// AnalysisConfig controls spectral search and compliance scoring
type AnalysisConfig struct {
	Preset           string  `json:"preset" yaml:"preset"`
	NumHarmonics     int     `json:"num_harmonics" yaml:"num_harmonics"`
	FundamentalMinHz float64 `json:"fundamental_min_hz" yaml:"fundamental_min_hz"`
	FundamentalMaxHz float64 `json:"fundamental_max_hz" yaml:"fundamental_max_hz"`
}

// DefaultAnalysisConfig returns the IEC 61000-3-2 Class A setup
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Preset:           "iec61000-3-2-class-a",
		NumHarmonics:     DefaultHarmonics,
		FundamentalMinHz: 45,
		FundamentalMaxHz: 65,
	}
}

// Validate checks harmonic count and search band
func (c AnalysisConfig) Validate() error {
	if c.NumHarmonics < MinHarmonics || c.NumHarmonics > MaxHarmonics {
		return common.NewInvalidConfiguration(
			fmt.Sprintf("num_harmonics must be in [%d,%d], got %d", MinHarmonics, MaxHarmonics, c.NumHarmonics), nil)
	}
	if c.FundamentalMinHz <= 0 || c.FundamentalMaxHz <= c.FundamentalMinHz {
		return common.NewInvalidConfiguration(
			fmt.Sprintf("fundamental search band (%g, %g) is invalid", c.FundamentalMinHz, c.FundamentalMaxHz), nil)
	}
	return nil
}

// DefaultChannelConfig returns a 20 A/V current channel without filtering
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Enabled:    true,
		SignalType: SignalCurrent,
		Ratio:      20.0,
		Filter: FilterConfig{
			Kind:           FilterLowPass,
			CutoffOrWindow: DefaultChannelCutoffHz,
		},
	}
}

// DefaultDifferentialFilter returns the disabled 500 Hz low-pass
func DefaultDifferentialFilter() FilterConfig {
	return FilterConfig{
		Kind:           FilterLowPass,
		CutoffOrWindow: DefaultDifferentialCutoffHz,
	}
}

// DifferentialConfig controls the derived CH1-CH2 channel
type DifferentialConfig struct {
	Enabled bool         `json:"enabled" yaml:"enabled"`
	Filter  FilterConfig `json:"filter" yaml:"filter"`
}

// DefaultDifferentialConfig derives the difference channel without filtering
func DefaultDifferentialConfig() DifferentialConfig {
	return DifferentialConfig{
		Enabled: true,
		Filter:  DefaultDifferentialFilter(),
	}
}

// RatioPreset is a named current-probe conversion
type RatioPreset struct {
	Name  string  `json:"name" yaml:"name"`
	Ratio float64 `json:"ratio_a_per_v" yaml:"ratio_a_per_v"`
}

// RatioPresets lists common probe conversions, e.g. 5A -> 0.25V is 20 A/V
func RatioPresets() []RatioPreset {
	return []RatioPreset{
		{Name: "5A->0.25V", Ratio: 20.0},
		{Name: "10A->1V", Ratio: 10.0},
		{Name: "1A->0.1V", Ratio: 10.0},
		{Name: "1A->1V", Ratio: 1.0},
		{Name: "100mV/A", Ratio: 10.0},
		{Name: "50mV/A", Ratio: 20.0},
	}
}

// LookupRatioPreset finds a preset by name
func LookupRatioPreset(name string) (float64, bool) {
	for _, p := range RatioPresets() {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p.Ratio, true
		}
	}
	return 0, false
}
