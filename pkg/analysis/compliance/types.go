package compliance

import (
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
)

// HarmonicStatus is the verdict on a single harmonic
type HarmonicStatus string

const (
	StatusFundamental HarmonicStatus = "FUNDAMENTAL"
	StatusPass        HarmonicStatus = "PASS"
	StatusFail        HarmonicStatus = "FAIL"
)

// HarmonicRecord is one harmonic order as measured and scored.
// Amplitude is a peak value in the channel's base unit.
type HarmonicRecord struct {
	Order          int            `json:"order" yaml:"order"`
	Frequency      float64        `json:"frequency_hz" yaml:"frequency_hz"`
	Amplitude      float64        `json:"amplitude" yaml:"amplitude"`
	PhaseDegrees   float64        `json:"phase_degrees" yaml:"phase_degrees"`
	Limit          float64        `json:"limit" yaml:"limit"`
	PercentOfLimit float64        `json:"percent_of_limit" yaml:"percent_of_limit"`
	Status         HarmonicStatus `json:"status" yaml:"status"`
}

// NewHarmonicRecord scores amplitude against limit. Order 1 is always the
// fundamental and carries no limit.
func NewHarmonicRecord(order int, frequency, amplitude, phaseDegrees, limit float64) HarmonicRecord {
	r := HarmonicRecord{
		Order:        order,
		Frequency:    frequency,
		Amplitude:    amplitude,
		PhaseDegrees: phaseDegrees,
	}

	if order == 1 {
		r.Status = StatusFundamental
		return r
	}

	r.Limit = limit
	if limit > 0 {
		r.PercentOfLimit = amplitude / limit * 100
	}
	if limit > 0 && r.PercentOfLimit > 100 {
		r.Status = StatusFail
	} else {
		r.Status = StatusPass
	}
	return r
}

// ChannelResult is the full analysis of one channel. It is built once and
// not modified afterwards.
type ChannelResult struct {
	ChannelID     string            `json:"channel_id" yaml:"channel_id"`
	SignalType    config.SignalType `json:"signal_type" yaml:"signal_type"`
	Unit          string            `json:"unit" yaml:"unit"`
	Ratio         float64           `json:"ratio" yaml:"ratio"`
	Derived       bool              `json:"derived" yaml:"derived"`
	SampleRate    float64           `json:"sample_rate" yaml:"sample_rate"`
	StartTime     float64           `json:"start_time" yaml:"start_time"`
	Samples       int               `json:"samples" yaml:"samples"`
	FundamentalHz float64           `json:"fundamental_hz" yaml:"fundamental_hz"`

	Harmonics   []HarmonicRecord `json:"harmonics" yaml:"harmonics"`
	THDPercent  float64          `json:"thd_percent" yaml:"thd_percent"`
	TDDPercent  float64          `json:"tdd_percent" yaml:"tdd_percent"`
	RMS         float64          `json:"rms" yaml:"rms"`
	Peak        float64          `json:"peak" yaml:"peak"`
	CrestFactor float64          `json:"crest_factor" yaml:"crest_factor"`
	PowerFactor float64          `json:"power_factor" yaml:"power_factor"`
	Compliant   bool             `json:"compliant" yaml:"compliant"`
	Violations  []HarmonicRecord `json:"violations" yaml:"violations"`

	FilterApplied    bool   `json:"filter_applied" yaml:"filter_applied"`
	FilterDescriptor string `json:"filter_descriptor,omitempty" yaml:"filter_descriptor,omitempty"`

	// Signal is the conditioned signal before DC removal
	Signal []float64 `json:"-" yaml:"-"`
}

// Fundamental returns the order-1 record, if present
func (r *ChannelResult) Fundamental() (HarmonicRecord, bool) {
	if len(r.Harmonics) == 0 || r.Harmonics[0].Order != 1 {
		return HarmonicRecord{}, false
	}
	return r.Harmonics[0], true
}

// ViolationOrders lists the failing harmonic orders
func (r *ChannelResult) ViolationOrders() []int {
	orders := make([]int, 0, len(r.Violations))
	for _, v := range r.Violations {
		orders = append(orders, v.Order)
	}
	return orders
}
