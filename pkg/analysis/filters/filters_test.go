package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
)

func sine(freq, amplitude, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func TestDetrend(t *testing.T) {
	signal := []float64{1, 2, 3, 4, 5}
	out := Detrend(signal)

	assert.InDeltaSlice(t, []float64{-2, -1, 0, 1, 2}, out, 1e-12)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, signal)
	assert.Empty(t, Detrend(nil))
}

func TestLowPassKeepsConstant(t *testing.T) {
	signal := make([]float64, 500)
	for i := range signal {
		signal[i] = 3.5
	}

	lp := &LowPass{CutoffHz: 100, Order: 4}
	out, _ := lp.Apply(signal, 10000)

	require.Len(t, out, len(signal))
	assert.InDeltaSlice(t, signal, out, 1e-9)
}

func TestLowPassRemovesHighFrequency(t *testing.T) {
	const sr = 10000.0
	const n = 5000
	clean := sine(50, 1, sr, n)
	noise := sine(3000, 0.5, sr, n)
	noisy := make([]float64, n)
	for i := range noisy {
		noisy[i] = clean[i] + noise[i]
	}
	original := append([]float64(nil), noisy...)

	lp := &LowPass{CutoffHz: 500, Order: 4}
	out, desc := lp.Apply(noisy, sr)

	assert.Equal(t, "lowpass 500Hz", desc)
	assert.Equal(t, original, noisy, "input must not be modified")
	require.Len(t, out, n)
	assert.InDeltaSlice(t, clean[500:n-500], out[500:n-500], 0.01)
}

func TestLowPassClampsCutoff(t *testing.T) {
	lp := &LowPass{CutoffHz: 10000}
	_, desc := lp.Apply(sine(50, 1, 10000, 100), 10000)
	assert.Equal(t, "lowpass 4500Hz", desc)

	out, _ := lp.Apply(nil, 10000)
	assert.Empty(t, out)
}

func TestLowPassShortSignal(t *testing.T) {
	lp := &LowPass{CutoffHz: 100, Order: 4}
	out, _ := lp.Apply([]float64{1, 2, 3}, 1000)
	assert.Len(t, out, 3)

	out, _ = lp.Apply([]float64{7}, 1000)
	assert.InDeltaSlice(t, []float64{7}, out, 1e-9)
}

func TestSavGolPreservesCubic(t *testing.T) {
	n := 200
	signal := make([]float64, n)
	for i := range signal {
		x := float64(i) * 0.01
		signal[i] = x*x*x - 2*x + 0.5
	}

	sg := &SavGol{Window: 51, PolyOrder: 3}
	out, desc := sg.Apply(signal, 1000)

	assert.Equal(t, "savgol w=51", desc)
	assert.InDeltaSlice(t, signal, out, 1e-6)
}

func TestSavGolSmoothsNoise(t *testing.T) {
	n := 1000
	signal := make([]float64, n)
	for i := range signal {
		if i%2 == 0 {
			signal[i] = 1
		} else {
			signal[i] = -1
		}
	}

	sg := &SavGol{Window: 51, PolyOrder: 3}
	out, _ := sg.Apply(signal, 1000)

	assert.Less(t, stat.StdDev(out[100:900], nil), 0.1)
}

func TestSavGolShortSignal(t *testing.T) {
	sg := &SavGol{Window: 51, PolyOrder: 3}

	out, desc := sg.Apply([]float64{1, 2, 3}, 1000)
	assert.Equal(t, []float64{1, 2, 3}, out)
	assert.Contains(t, desc, "skipped")

	signal := []float64{1, 4, 9, 16, 25, 36}
	out, desc = sg.Apply(signal, 1000)
	assert.Equal(t, "savgol w=5", desc)
	// quadratic data fits a cubic exactly
	assert.InDeltaSlice(t, signal, out, 1e-9)
}

func TestMovingAverageMatchesSameConvolution(t *testing.T) {
	ma := &MovingAverage{Window: 3}
	out, desc := ma.Apply([]float64{1, 2, 3, 4, 5}, 1000)

	assert.Equal(t, "moving_avg w=3", desc)
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4, 3}, out, 1e-12)

	ma = &MovingAverage{Window: 4}
	out, _ = ma.Apply([]float64{4, 4, 4, 4, 4, 4}, 1000)
	assert.InDeltaSlice(t, []float64{2, 3, 4, 4, 4, 3}, out, 1e-12)
}

func TestForChannel(t *testing.T) {
	f, err := ForChannel(config.FilterConfig{Enabled: false, Kind: config.FilterLowPass})
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = ForChannel(config.FilterConfig{Enabled: true, Kind: config.FilterLowPass})
	require.NoError(t, err)
	assert.Equal(t, &LowPass{CutoffHz: 2500, Order: 4}, f)

	// smoothing windows ignore the configured value on measured channels
	f, err = ForChannel(config.FilterConfig{Enabled: true, Kind: config.FilterSmooth, CutoffOrWindow: 11})
	require.NoError(t, err)
	assert.Equal(t, &SavGol{Window: 51, PolyOrder: 3}, f)

	f, err = ForChannel(config.FilterConfig{Enabled: true, Kind: config.FilterMovingAvg, CutoffOrWindow: 11})
	require.NoError(t, err)
	assert.Equal(t, &MovingAverage{Window: 51}, f)

	_, err = ForChannel(config.FilterConfig{Enabled: true, Kind: "notch"})
	assert.ErrorIs(t, err, common.ErrInvalidConfiguration)
}

func TestForDifferential(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.FilterConfig
		n    int
		want Filter
	}{
		{"lowpass default", config.FilterConfig{Enabled: true, Kind: config.FilterLowPass}, 1000, &LowPass{CutoffHz: 500, Order: 4}},
		{"savgol from cutoff", config.FilterConfig{Enabled: true, Kind: config.FilterSmooth, CutoffOrWindow: 100}, 10000, &SavGol{Window: 101, PolyOrder: 3}},
		{"savgol odd kept", config.FilterConfig{Enabled: true, Kind: config.FilterSmooth, CutoffOrWindow: 21}, 10000, &SavGol{Window: 21, PolyOrder: 3}},
		{"savgol small value", config.FilterConfig{Enabled: true, Kind: config.FilterSmooth, CutoffOrWindow: 5}, 10000, &SavGol{Window: 51, PolyOrder: 3}},
		{"savgol clamped", config.FilterConfig{Enabled: true, Kind: config.FilterSmooth, CutoffOrWindow: 500}, 40, &SavGol{Window: 39, PolyOrder: 3}},
		{"savgol floor", config.FilterConfig{Enabled: true, Kind: config.FilterSmooth, CutoffOrWindow: 500}, 4, &SavGol{Window: 5, PolyOrder: 3}},
		{"moving from cutoff", config.FilterConfig{Enabled: true, Kind: config.FilterMovingAvg, CutoffOrWindow: 200}, 10000, &MovingAverage{Window: 200}},
		{"moving small value", config.FilterConfig{Enabled: true, Kind: config.FilterMovingAvg, CutoffOrWindow: 0.5}, 10000, &MovingAverage{Window: 51}},
		{"moving clamped", config.FilterConfig{Enabled: true, Kind: config.FilterMovingAvg, CutoffOrWindow: 200}, 100, &MovingAverage{Window: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ForDifferential(tt.cfg, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}

	f, err := ForDifferential(config.FilterConfig{Kind: config.FilterSmooth}, 100)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestConditionerWithoutFilter(t *testing.T) {
	c := NewConditioner(logging.NewNopLogger())
	signal := []float64{2, 4, 6}

	out := c.Condition(signal, 1000, nil)

	assert.False(t, out.FilterApplied)
	assert.Empty(t, out.FilterDescriptor)
	assert.Equal(t, signal, out.Filtered)
	assert.InDeltaSlice(t, []float64{-2, 0, 2}, out.Detrended, 1e-12)
}

func TestConditionerWithFilter(t *testing.T) {
	c := NewConditioner(logging.NewNopLogger())
	signal := sine(50, 1, 10000, 2000)
	for i := range signal {
		signal[i] += 0.25
	}

	out, err := c.ConditionChannel(signal, 10000, config.FilterConfig{Enabled: true, Kind: config.FilterLowPass, CutoffOrWindow: 2500})
	require.NoError(t, err)

	assert.True(t, out.FilterApplied)
	assert.Equal(t, "lowpass 2500Hz", out.FilterDescriptor)
	assert.InDelta(t, 0.25, stat.Mean(out.Filtered, nil), 0.01)
	assert.InDelta(t, 0, stat.Mean(out.Detrended, nil), 1e-9)
}
