package analysis

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/analyzers"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/compliance"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/filters"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

// Analyzer runs the scale, condition, spectrum and compliance stages for
// each channel. It holds no per-run state and may be reused across files
// and goroutines.
type Analyzer struct {
	config      config.AnalysisConfig
	preset      compliance.Preset
	conditioner *filters.Conditioner
	spectral    *analyzers.SpectralAnalyzer
	logger      logging.Logger
}

// NewAnalyzer resolves the preset and validates cfg. A zero harmonic count
// takes the preset's count.
func NewAnalyzer(cfg config.AnalysisConfig, logger logging.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	if cfg.Preset == "" {
		cfg.Preset = config.DefaultAnalysisConfig().Preset
	}
	preset, err := compliance.LookupPreset(cfg.Preset)
	if err != nil {
		return nil, err
	}
	if cfg.NumHarmonics == 0 {
		cfg.NumHarmonics = preset.NumHarmonics
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	band := analyzers.Band{MinHz: cfg.FundamentalMinHz, MaxHz: cfg.FundamentalMaxHz}

	return &Analyzer{
		config:      cfg,
		preset:      preset,
		conditioner: filters.NewConditioner(logger),
		spectral:    analyzers.NewSpectralAnalyzer(band, preset.Limits, logger),
		logger: logger.WithFields(logging.Fields{
			"component":     "harmonic_analyzer",
			"preset":        preset.Name,
			"num_harmonics": cfg.NumHarmonics,
		}),
	}, nil
}

// Config returns the resolved configuration
func (a *Analyzer) Config() config.AnalysisConfig {
	return a.config
}

// Preset returns the resolved preset
func (a *Analyzer) Preset() compliance.Preset {
	return a.preset
}

// AnalyzeChannel scales raw probe samples, conditions them and scores the
// result
func (a *Analyzer) AnalyzeChannel(id string, wf *waveform.Waveform, cc config.ChannelConfig) (*compliance.ChannelResult, error) {
	if wf == nil || wf.Len() == 0 {
		return nil, common.NewMalformedInput(id, "channel has no samples", nil)
	}
	if err := cc.Validate(); err != nil {
		return nil, fmt.Errorf("channel %s: %w", id, err)
	}

	filter, err := filters.ForChannel(cc.Filter)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", id, err)
	}

	scale := cc.Scale()
	scaled := make([]float64, wf.Len())
	for i, v := range wf.Samples {
		scaled[i] = v * scale
	}

	ratio := cc.Ratio
	if cc.SignalType != config.SignalCurrent {
		ratio = config.VoltageProbeFactor
	}

	result := &compliance.ChannelResult{
		ChannelID:  id,
		SignalType: cc.SignalType,
		Unit:       cc.SignalType.Unit(),
		Ratio:      ratio,
		SampleRate: wf.SampleRate,
		StartTime:  wf.StartTime,
	}
	a.run(result, scaled, filter)

	return result, nil
}

// Differential derives left-right over the common length, optionally
// filters it and runs the full pipeline on it
func (a *Analyzer) Differential(left, right *compliance.ChannelResult, dc config.DifferentialConfig) (*compliance.ChannelResult, error) {
	if left == nil || right == nil {
		return nil, common.NewMalformedInput("differential", "both channels are required", nil)
	}

	n := min(len(left.Signal), len(right.Signal))
	if n == 0 {
		return nil, common.NewMalformedInput(left.ChannelID+"-"+right.ChannelID, "channels have no samples", nil)
	}
	if left.SampleRate != right.SampleRate {
		a.logger.Warn("Channel sample rates differ, using the first", logging.Fields{
			"left":              left.ChannelID,
			"right":             right.ChannelID,
			"left_sample_rate":  left.SampleRate,
			"right_sample_rate": right.SampleRate,
		})
	}
	if len(left.Signal) != len(right.Signal) {
		a.logger.Debug("Truncating channels to common length", logging.Fields{
			"left_samples":  len(left.Signal),
			"right_samples": len(right.Signal),
			"samples":       n,
		})
	}

	var filter filters.Filter
	if dc.Filter.Enabled {
		var err error
		filter, err = filters.ForDifferential(dc.Filter, n)
		if err != nil {
			return nil, fmt.Errorf("differential: %w", err)
		}
	}

	diff := make([]float64, n)
	for i := range diff {
		diff[i] = left.Signal[i] - right.Signal[i]
	}

	signalType := config.SignalMixed
	if left.SignalType == right.SignalType {
		signalType = left.SignalType
	}

	result := &compliance.ChannelResult{
		ChannelID:  left.ChannelID + "-" + right.ChannelID,
		SignalType: signalType,
		Unit:       signalType.Unit(),
		Ratio:      1.0,
		Derived:    true,
		SampleRate: left.SampleRate,
		StartTime:  left.StartTime,
	}
	a.run(result, diff, filter)

	return result, nil
}

// run conditions signal and fills the measured fields of result
func (a *Analyzer) run(result *compliance.ChannelResult, signal []float64, filter filters.Filter) {
	conditioned := a.conditioner.Condition(signal, result.SampleRate, filter)
	measurement := a.spectral.Measure(conditioned.Detrended, result.SampleRate, a.config.NumHarmonics)
	summary := compliance.Summarize(conditioned.Detrended, measurement.Harmonics, measurement.FundamentalMagnitude, 0)

	result.Samples = len(signal)
	result.Signal = conditioned.Filtered
	result.FilterApplied = conditioned.FilterApplied
	result.FilterDescriptor = conditioned.FilterDescriptor
	result.FundamentalHz = measurement.FundamentalHz
	result.Harmonics = measurement.Harmonics
	result.THDPercent = summary.THDPercent
	result.TDDPercent = summary.TDDPercent
	result.RMS = summary.RMS
	result.Peak = summary.Peak
	result.CrestFactor = summary.CrestFactor
	result.PowerFactor = summary.PowerFactor
	result.Compliant = summary.Compliant
	result.Violations = summary.Violations

	if summary.RMS == 0 {
		a.logger.Warn("Channel is flat, metrics are zero", logging.Fields{
			"channel": result.ChannelID,
		})
	}

	a.logger.Debug("Channel analyzed", logging.Fields{
		"channel":        result.ChannelID,
		"fundamental_hz": result.FundamentalHz,
		"thd_percent":    result.THDPercent,
		"rms":            result.RMS,
		"compliant":      result.Compliant,
		"violations":     len(result.Violations),
	})
}

// CaptureResult groups the channels analyzed from one capture, measured
// channels first and the derived channel last
type CaptureResult struct {
	Source       string                      `json:"source" yaml:"source"`
	Preset       string                      `json:"preset" yaml:"preset"`
	LimitTable   string                      `json:"limit_table" yaml:"limit_table"`
	NumHarmonics int                         `json:"num_harmonics" yaml:"num_harmonics"`
	Channels     []*compliance.ChannelResult `json:"channels" yaml:"channels"`
}

// Channel finds a channel by id
func (r *CaptureResult) Channel(id string) (*compliance.ChannelResult, bool) {
	for _, ch := range r.Channels {
		if strings.EqualFold(ch.ChannelID, id) {
			return ch, true
		}
	}
	return nil, false
}

// Compliant is true when every measured current channel passes. Voltage
// and derived channels are not judged.
func (r *CaptureResult) Compliant() bool {
	for _, ch := range r.Channels {
		if ch.SignalType == config.SignalCurrent && !ch.Derived && !ch.Compliant {
			return false
		}
	}
	return true
}

// AnalyzeCapture analyzes every enabled channel of capture and, when both
// CH1 and CH2 were analyzed and dc is enabled, their difference
func (a *Analyzer) AnalyzeCapture(capture *waveform.Capture, channels map[waveform.ChannelID]config.ChannelConfig, dc config.DifferentialConfig) (*CaptureResult, error) {
	waveforms, err := waveform.FromCapture(capture)
	if err != nil {
		return nil, err
	}

	result := &CaptureResult{
		Source:       capture.Source,
		Preset:       a.preset.Name,
		LimitTable:   a.preset.Limits.Name(),
		NumHarmonics: a.config.NumHarmonics,
	}

	byID := make(map[waveform.ChannelID]*compliance.ChannelResult)
	for _, id := range capture.ChannelIDs() {
		cc, ok := channels[id]
		if !ok || !cc.Enabled {
			a.logger.Debug("Channel disabled", logging.Fields{"channel": string(id)})
			continue
		}

		ch, err := a.AnalyzeChannel(string(id), waveforms[id], cc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", capture.Source, err)
		}
		byID[id] = ch
		result.Channels = append(result.Channels, ch)
	}

	if len(result.Channels) == 0 {
		return nil, common.NewInvalidConfiguration(fmt.Sprintf("%s: no enabled channel present in capture", capture.Source), nil)
	}

	ch1, ok1 := byID[waveform.ChannelCH1]
	ch2, ok2 := byID[waveform.ChannelCH2]
	if dc.Enabled && ok1 && ok2 {
		diff, err := a.Differential(ch1, ch2, dc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", capture.Source, err)
		}
		result.Channels = append(result.Channels, diff)
	}

	a.logger.Info("Capture analyzed", logging.Fields{
		"source":    capture.Source,
		"channels":  len(result.Channels),
		"compliant": result.Compliant(),
	})
	return result, nil
}

// AnalyzeWaveform analyzes a single waveform, such as an image trace, as a
// capture with one channel
func (a *Analyzer) AnalyzeWaveform(source, id string, wf *waveform.Waveform, cc config.ChannelConfig) (*CaptureResult, error) {
	ch, err := a.AnalyzeChannel(id, wf, cc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &CaptureResult{
		Source:       source,
		Preset:       a.preset.Name,
		LimitTable:   a.preset.Limits.Name(),
		NumHarmonics: a.config.NumHarmonics,
		Channels:     []*compliance.ChannelResult{ch},
	}, nil
}
