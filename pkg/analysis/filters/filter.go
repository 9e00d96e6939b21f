package filters

import (
	"fmt"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

// Filter is a zero-phase smoothing or band-limiting stage. Apply never
// modifies its input; the returned descriptor says what was applied.
type Filter interface {
	Apply(signal []float64, sampleRate float64) ([]float64, string)
}

// ForChannel builds the filter for a measured channel. Smoothing filters
// use the fixed DefaultFilterWindow; only low-pass reads the configured value.
// Returns nil when filtering is disabled.
func ForChannel(cfg config.FilterConfig) (Filter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case config.FilterLowPass:
		cutoff := cfg.CutoffOrWindow
		if cutoff <= 0 {
			cutoff = config.DefaultChannelCutoffHz
		}
		return &LowPass{CutoffHz: cutoff, Order: config.ButterworthOrder}, nil
	case config.FilterSmooth:
		return &SavGol{Window: config.DefaultFilterWindow, PolyOrder: config.DefaultPolyOrder}, nil
	case config.FilterMovingAvg:
		return &MovingAverage{Window: config.DefaultFilterWindow}, nil
	}
	return nil, common.NewInvalidConfiguration(fmt.Sprintf("unknown filter kind %q", cfg.Kind), nil)
}

// ForDifferential builds the filter for a difference signal of length n.
// Smoothing windows come from the configured value: odd-forced and clamped
// to the signal for Savitzky-Golay, clamped for the moving average.
func ForDifferential(cfg config.FilterConfig, n int) (Filter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	value := cfg.CutoffOrWindow
	if value <= 0 {
		value = config.DefaultDifferentialCutoffHz
	}

	switch cfg.Kind {
	case config.FilterLowPass:
		return &LowPass{CutoffHz: value, Order: config.ButterworthOrder}, nil

	case config.FilterSmooth:
		window := config.DefaultFilterWindow
		if value > 10 {
			window = int(value)
		}
		if window%2 == 0 {
			window++
		}
		window = min(window, n-1)
		window = max(window, 5)
		return &SavGol{Window: window, PolyOrder: config.DefaultPolyOrder}, nil

	case config.FilterMovingAvg:
		window := config.DefaultFilterWindow
		if value > 1 {
			window = int(value)
		}
		window = min(window, n-1)
		window = max(window, 1)
		return &MovingAverage{Window: window}, nil
	}
	return nil, common.NewInvalidConfiguration(fmt.Sprintf("unknown filter kind %q", cfg.Kind), nil)
}
