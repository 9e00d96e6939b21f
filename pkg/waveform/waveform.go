package waveform

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

// ChannelID names an instrument channel
type ChannelID string

const (
	ChannelCH1 ChannelID = "CH1"
	ChannelCH2 ChannelID = "CH2"
)

// Waveform is a uniformly sampled signal. Treat it as read-only once built.
type Waveform struct {
	Samples    []float64 `json:"-"`
	SampleRate float64   `json:"sample_rate"` // Hz
	StartTime  float64   `json:"start_time"`  // seconds
}

// New validates and copies samples into a Waveform
func New(samples []float64, sampleRate float64) (*Waveform, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, common.NewMalformedInput("", fmt.Sprintf("sample rate must be positive, got %g", sampleRate), nil)
	}
	if len(samples) == 0 {
		return nil, common.NewMalformedInput("", "waveform has no samples", nil)
	}

	owned := make([]float64, len(samples))
	copy(owned, samples)

	return &Waveform{Samples: owned, SampleRate: sampleRate}, nil
}

// Dt returns the sample interval in seconds
func (w *Waveform) Dt() float64 {
	return 1 / w.SampleRate
}

// Len returns the number of samples
func (w *Waveform) Len() int {
	return len(w.Samples)
}

// Duration returns len*dt in seconds
func (w *Waveform) Duration() float64 {
	return float64(len(w.Samples)) * w.Dt()
}

// Time returns the time base start+i*dt
func (w *Waveform) Time() []float64 {
	return TimeBase(w.StartTime, w.Dt(), len(w.Samples))
}

// TimeBase builds start+i*dt for n samples
func TimeBase(start, dt float64, n int) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = start + float64(i)*dt
	}
	return t
}

// Capture is a pre-parsed tabular instrument capture: a start offset,
// a fixed sample interval and one column per present channel.
type Capture struct {
	Source    string                  `json:"source"`
	StartTime float64                 `json:"start_time"`
	Interval  float64                 `json:"interval"`
	Channels  map[ChannelID][]float64 `json:"-"`
}

// ChannelIDs returns the present channels in a stable order
func (c *Capture) ChannelIDs() []ChannelID {
	ids := make([]ChannelID, 0, len(c.Channels))
	for id := range c.Channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Points returns the longest channel length
func (c *Capture) Points() int {
	n := 0
	for _, samples := range c.Channels {
		n = max(n, len(samples))
	}
	return n
}

// FromCapture produces one Waveform per present channel, all sharing the
// capture's time base.
func FromCapture(c *Capture) (map[ChannelID]*Waveform, error) {
	if c == nil {
		return nil, common.NewMalformedInput("", "capture is nil", nil)
	}
	if c.Interval <= 0 || math.IsNaN(c.Interval) || math.IsInf(c.Interval, 0) {
		return nil, common.NewMalformedInput(c.Source, fmt.Sprintf("sample interval must be positive, got %g", c.Interval), nil)
	}
	if len(c.Channels) == 0 {
		return nil, common.NewMalformedInput(c.Source, "capture declares neither CH1 nor CH2", nil)
	}

	out := make(map[ChannelID]*Waveform, len(c.Channels))
	for _, id := range c.ChannelIDs() {
		wf, err := New(c.Channels[id], 1/c.Interval)
		if err != nil {
			return nil, common.NewMalformedInput(c.Source, fmt.Sprintf("channel %s", id), err)
		}
		wf.StartTime = c.StartTime
		out[id] = wf
	}

	return out, nil
}
