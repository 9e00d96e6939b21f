package batch

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

const sampleRate = 10000.0

// currentCapture builds a CH1-only capture of a 50 Hz current with the
// given peak amplitudes per order, as probe volts at 20 A/V
func currentCapture(source string, amplitudes map[int]float64) *waveform.Capture {
	samples := make([]float64, 2000)
	for i := range samples {
		t := float64(i) / sampleRate
		for order, amp := range amplitudes {
			samples[i] += amp / 20 * math.Sin(2*math.Pi*50*float64(order)*t)
		}
	}
	return &waveform.Capture{
		Source:   source,
		Interval: 1 / sampleRate,
		Channels: map[waveform.ChannelID][]float64{waveform.ChannelCH1: samples},
	}
}

func fixtureLoader(calls *atomic.Int32) Loader {
	return func(path string) (*waveform.Capture, error) {
		if calls != nil {
			calls.Add(1)
		}
		switch path {
		case "clean.csv":
			return currentCapture(path, map[int]float64{1: 10}), nil
		case "third.csv":
			return currentCapture(path, map[int]float64{1: 10, 3: 3}), nil
		case "panic.csv":
			panic("corrupt fixture")
		default:
			return nil, common.NewMalformedInput(path, "no such capture", nil)
		}
	}
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	a, err := analysis.NewAnalyzer(config.DefaultAnalysisConfig(), logging.NewNopLogger())
	require.NoError(t, err)
	o, err := NewOrchestrator(a, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	return o
}

func TestNewOrchestratorRequiresAnalyzer(t *testing.T) {
	_, err := NewOrchestrator(nil, Config{}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRunIsolatesFailures(t *testing.T) {
	metrics := NewMetrics()
	o := newOrchestrator(t, Config{Loader: fixtureLoader(nil), Metrics: metrics})

	paths := []string{"clean.csv", "missing.csv", "third.csv", "panic.csv"}
	summary := o.Run(context.Background(), paths)
	require.Len(t, summary.Entries, 4)

	for i, e := range summary.Entries {
		assert.Equal(t, paths[i], e.Source)
	}

	clean := summary.Entries[0]
	require.NoError(t, clean.Err)
	assert.True(t, clean.Result.Compliant())

	missing := summary.Entries[1]
	assert.ErrorIs(t, missing.Err, common.ErrMalformedInput)
	assert.Nil(t, missing.Result)
	assert.NotEmpty(t, missing.Error)

	third := summary.Entries[2]
	require.NoError(t, third.Err)
	assert.False(t, third.Result.Compliant())
	ch1, ok := third.Result.Channel("CH1")
	require.True(t, ok)
	assert.Equal(t, []int{3}, ch1.ViolationOrders())

	panicked := summary.Entries[3]
	require.Error(t, panicked.Err)
	assert.Contains(t, panicked.Error, "corrupt fixture")

	stats := summary.Stats
	assert.Equal(t, 4, stats.Files)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.NonCompliant)
	assert.Equal(t, map[int]int{3: 1}, stats.ViolationsByOrder)
	assert.Equal(t, map[string]int{"MALFORMED_INPUT": 1, "other": 1}, stats.ErrorDistribution)
	assert.Equal(t, 2, stats.THDPercent.Count)
	assert.InDelta(t, 30, stats.THDPercent.Max, 0.1)
	assert.InDelta(t, 0, stats.THDPercent.Min, 0.1)
	assert.Equal(t, 4, stats.DurationMS.Count)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.filesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.filesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.channelsTotal.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.channelsTotal.WithLabelValues("fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.violationTotal.WithLabelValues("3")))
}

func TestRunKeepsInputOrderWithConcurrency(t *testing.T) {
	var calls atomic.Int32
	o := newOrchestrator(t, Config{Loader: fixtureLoader(&calls), MaxConcurrency: 4})

	var paths []string
	for i := 0; i < 12; i++ {
		if i%3 == 0 {
			paths = append(paths, "third.csv")
		} else {
			paths = append(paths, "clean.csv")
		}
	}

	summary := o.Run(context.Background(), paths)
	require.Len(t, summary.Entries, len(paths))
	assert.Equal(t, int32(len(paths)), calls.Load())

	for i, e := range summary.Entries {
		require.NoError(t, e.Err)
		assert.Equal(t, i%3 != 0, e.Result.Compliant(), "entry %d", i)
	}
	assert.Equal(t, 4, summary.Stats.NonCompliant)
}

func TestRunStopsSchedulingWhenCancelled(t *testing.T) {
	var calls atomic.Int32
	o := newOrchestrator(t, Config{Loader: fixtureLoader(&calls)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := o.Run(ctx, []string{"clean.csv", "third.csv"})
	assert.Equal(t, int32(0), calls.Load())
	for _, e := range summary.Entries {
		assert.ErrorIs(t, e.Err, context.Canceled)
	}
	assert.Equal(t, map[string]int{"cancelled": 2}, summary.Stats.ErrorDistribution)
}

func TestRunAnalyzesRepeatedFilesIdentically(t *testing.T) {
	o := newOrchestrator(t, Config{Loader: fixtureLoader(nil)})

	summary := o.Run(context.Background(), []string{"third.csv", "third.csv"})
	first, _ := summary.Entries[0].Result.Channel("CH1")
	second, _ := summary.Entries[1].Result.Channel("CH1")
	assert.Equal(t, first.Harmonics, second.Harmonics)
	assert.Equal(t, first.THDPercent, second.THDPercent)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.5, percentile(sorted, 50))
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 4.0, percentile(sorted, 100))
	assert.Equal(t, 7.0, percentile([]float64{7}, 95))
	assert.Equal(t, 0.0, percentile(nil, 50))
}

func TestDistribution(t *testing.T) {
	sc := NewStatsCalculator(logging.NewNopLogger())

	d := sc.distribution([]float64{4, 2, 2, 4})
	assert.Equal(t, 4, d.Count)
	assert.InDelta(t, 3.0, d.Mean, 1e-12)
	assert.InDelta(t, 1.0, d.StdDev, 1e-12)
	assert.Equal(t, 2.0, d.Min)
	assert.Equal(t, 4.0, d.Max)

	assert.Equal(t, &Distribution{}, sc.distribution(nil))
}

func TestMetricsWriteTextfile(t *testing.T) {
	metrics := NewMetrics()
	o := newOrchestrator(t, Config{Loader: fixtureLoader(nil), Metrics: metrics})
	o.Run(context.Background(), []string{"clean.csv", "missing.csv"})

	path := filepath.Join(t.TempDir(), "harmonic.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `harmonic_analyzer_files_total{status="ok"} 1`), text)
	assert.True(t, strings.Contains(text, `harmonic_analyzer_files_total{status="error"} 1`), text)
	assert.Contains(t, text, "harmonic_analyzer_file_duration_seconds_count 2")
}

func TestNilMetricsIgnoresObservations(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe(output.BatchEntry{Source: "x"}) })
}
