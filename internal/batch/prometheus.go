package batch

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
)

// Metrics holds the batch collectors on their own registry so a run can be
// dumped in the node_exporter textfile format
type Metrics struct {
	registry *prometheus.Registry

	filesTotal     *prometheus.CounterVec
	channelsTotal  *prometheus.CounterVec
	thdPercent     *prometheus.HistogramVec
	fileDuration   prometheus.Histogram
	violationTotal *prometheus.CounterVec
}

// NewMetrics registers the batch collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_analyzer_files_total",
				Help: "Capture files processed by outcome",
			},
			[]string{"status"}, // ok, error
		),
		channelsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_analyzer_channels_total",
				Help: "Analyzed channels by compliance verdict",
			},
			[]string{"compliance"}, // pass, fail, none
		),
		thdPercent: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harmonic_analyzer_thd_percent",
				Help:    "Total harmonic distortion of analyzed channels",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
			},
			[]string{"signal_type"},
		),
		fileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harmonic_analyzer_file_duration_seconds",
				Help:    "Time spent loading and analyzing one capture file",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}, // 5ms to 5s
			},
		),
		violationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_analyzer_violations_total",
				Help: "Harmonics over their limit by order",
			},
			[]string{"order"},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one batch entry. A nil Metrics ignores it.
func (m *Metrics) Observe(e output.BatchEntry) {
	if m == nil {
		return
	}

	m.fileDuration.Observe(e.DurationMS / 1000)
	if e.Err != nil || e.Result == nil {
		m.filesTotal.WithLabelValues("error").Inc()
		return
	}
	m.filesTotal.WithLabelValues("ok").Inc()

	for _, ch := range e.Result.Channels {
		m.thdPercent.WithLabelValues(string(ch.SignalType)).Observe(ch.THDPercent)

		switch {
		case ch.Derived || ch.SignalType != config.SignalCurrent:
			m.channelsTotal.WithLabelValues("none").Inc()
		case ch.Compliant:
			m.channelsTotal.WithLabelValues("pass").Inc()
		default:
			m.channelsTotal.WithLabelValues("fail").Inc()
		}

		if ch.Derived {
			continue
		}
		for _, v := range ch.Violations {
			m.violationTotal.WithLabelValues(fmt.Sprintf("%d", v.Order)).Inc()
		}
	}
}

// WriteTextfile writes every collected metric to path
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
