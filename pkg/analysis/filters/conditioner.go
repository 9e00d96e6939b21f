package filters

import (
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
)

// Conditioned is the output of one conditioning pass
type Conditioned struct {
	Filtered         []float64 // post-filter, DC intact
	Detrended        []float64 // mean removed, fed to the spectrum
	FilterApplied    bool
	FilterDescriptor string
}

// Conditioner applies an optional filter and removes the DC offset
type Conditioner struct {
	logger logging.Logger
}

// NewConditioner creates a conditioner; nil logger falls back to the default
func NewConditioner(logger logging.Logger) *Conditioner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Conditioner{
		logger: logger.WithFields(logging.Fields{"component": "signal_conditioner"}),
	}
}

// Condition filters then detrends. A nil filter leaves the signal as is.
// The input is never modified.
func (c *Conditioner) Condition(signal []float64, sampleRate float64, filter Filter) Conditioned {
	result := Conditioned{}

	if filter != nil && len(signal) > 0 {
		result.Filtered, result.FilterDescriptor = filter.Apply(signal, sampleRate)
		result.FilterApplied = true
		c.logger.Debug("Filter applied", logging.Fields{
			"filter":      result.FilterDescriptor,
			"samples":     len(signal),
			"sample_rate": sampleRate,
		})
	} else {
		result.Filtered = make([]float64, len(signal))
		copy(result.Filtered, signal)
	}

	result.Detrended = Detrend(result.Filtered)
	return result
}

// ConditionChannel builds the channel filter from cfg and conditions the signal
func (c *Conditioner) ConditionChannel(signal []float64, sampleRate float64, cfg config.FilterConfig) (Conditioned, error) {
	filter, err := ForChannel(cfg)
	if err != nil {
		return Conditioned{}, err
	}
	return c.Condition(signal, sampleRate, filter), nil
}

// Detrend subtracts the arithmetic mean
func Detrend(signal []float64) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}
	mean := stat.Mean(signal, nil)
	for i, v := range signal {
		out[i] = v - mean
	}
	return out
}
