package compliance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

func records(amplitudes ...float64) []HarmonicRecord {
	out := make([]HarmonicRecord, len(amplitudes))
	for i, a := range amplitudes {
		order := i + 1
		out[i] = NewHarmonicRecord(order, 50*float64(order), a, 0, ClassALimits().Limit(order))
	}
	return out
}

func TestClassALimits(t *testing.T) {
	table := ClassALimits()

	assert.Equal(t, 0.0, table.Limit(1))
	assert.Equal(t, 1.08, table.Limit(2))
	assert.Equal(t, 2.30, table.Limit(3))
	assert.Equal(t, 0.046, table.Limit(40))
	assert.Equal(t, 0.0, table.Limit(41))
	assert.Equal(t, 40, table.MaxOrder())

	orders := table.Orders()
	require.Len(t, orders, 39)
	assert.Equal(t, 2, orders[0])

	// callers get a copy
	orders[0] = 99
	assert.Equal(t, 2, table.Orders()[0])
}

func TestNewLimitTableRejectsBadEntries(t *testing.T) {
	_, err := NewLimitTable("bad", map[int]float64{1: 1})
	assert.ErrorIs(t, err, common.ErrInvalidConfiguration)

	_, err = NewLimitTable("bad", map[int]float64{3: -1})
	assert.ErrorIs(t, err, common.ErrInvalidConfiguration)

	var nilTable *LimitTable
	assert.Equal(t, 0.0, nilTable.Limit(3))
}

func TestPresets(t *testing.T) {
	p, err := LookupPreset("IEC61000-3-2-Class-A")
	require.NoError(t, err)
	assert.Equal(t, 40, p.NumHarmonics)
	assert.Same(t, ClassALimits(), p.Limits)

	quick, err := LookupPreset("quick")
	require.NoError(t, err)
	assert.Equal(t, 20, quick.NumHarmonics)
	assert.Equal(t, 20, quick.Limits.MaxOrder())
	assert.Equal(t, 0.0, quick.Limits.Limit(21))

	_, err = LookupPreset("class-z")
	assert.ErrorIs(t, err, common.ErrInvalidConfiguration)

	assert.Len(t, Presets(), 3)
}

func TestHarmonicRecordStatus(t *testing.T) {
	fund := NewHarmonicRecord(1, 50, 10, 0, 5)
	assert.Equal(t, StatusFundamental, fund.Status)
	assert.Equal(t, 0.0, fund.Limit)
	assert.Equal(t, 0.0, fund.PercentOfLimit)

	pass := NewHarmonicRecord(3, 150, 2.3, 0, 2.3)
	assert.Equal(t, StatusPass, pass.Status)
	assert.InDelta(t, 100.0, pass.PercentOfLimit, 1e-9)

	fail := NewHarmonicRecord(3, 150, 2.4, 0, 2.3)
	assert.Equal(t, StatusFail, fail.Status)

	unlimited := NewHarmonicRecord(45, 2250, 100, 0, 0)
	assert.Equal(t, StatusPass, unlimited.Status)
	assert.Equal(t, 0.0, unlimited.PercentOfLimit)
}

func TestRMSPeakCrest(t *testing.T) {
	signal := []float64{1, -1, 1, -1}
	assert.InDelta(t, 1.0, RMS(signal), 1e-12)
	assert.Equal(t, 1.0, Peak(signal))
	assert.InDelta(t, 1.0, CrestFactor(Peak(signal), RMS(signal)), 1e-12)

	assert.Equal(t, 3.0, Peak([]float64{1, -3, 2}))

	n := 1000
	sine := make([]float64, n)
	for i := range sine {
		sine[i] = 2 * math.Sin(2*math.Pi*float64(i)/float64(n))
	}
	assert.InDelta(t, math.Sqrt2, RMS(sine), 1e-9)
	assert.InDelta(t, math.Sqrt2, CrestFactor(Peak(sine), RMS(sine)), 1e-6)

	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, Peak(nil))
	assert.Equal(t, 0.0, CrestFactor(0, 0))
}

func TestTHDAndTDD(t *testing.T) {
	h := records(10, 0, 1)
	assert.InDelta(t, 10.0, THD(h), 1e-9)
	assert.InDelta(t, 10.0, TDD(h, 0), 1e-9)
	assert.InDelta(t, 5.0, TDD(h, 20), 1e-9)

	assert.Equal(t, 0.0, THD(records(0, 1, 1)))
	assert.Equal(t, 0.0, TDD(records(0, 1, 1), 0))
}

func TestTHDIgnoresOrdersAbove40(t *testing.T) {
	amps := make([]float64, 50)
	amps[0] = 10
	amps[44] = 5 // order 45
	h := records(amps...)

	assert.Equal(t, 0.0, THD(h))
	assert.Equal(t, 0.0, TDD(h, 0))

	amps[39] = 1 // order 40
	assert.InDelta(t, 10.0, THD(records(amps...)), 1e-9)
}

func TestPowerFactor(t *testing.T) {
	assert.Equal(t, 0.0, PowerFactor(0, 0))
	assert.InDelta(t, 0.5, PowerFactor(1, 2), 1e-12)
	// the 2/N peak magnitude of a pure sine exceeds its RMS
	assert.Equal(t, 1.0, PowerFactor(math.Sqrt2, 1))
}

func TestEvaluate(t *testing.T) {
	compliant, violations := Evaluate(records(10, 0.1, 0.1))
	assert.True(t, compliant)
	assert.Empty(t, violations)
	assert.NotNil(t, violations)

	h := records(10, 2, 1, 0.5)
	compliant, violations = Evaluate(h)
	assert.False(t, compliant)
	require.Len(t, violations, 2)
	assert.Equal(t, 2, violations[0].Order)
	assert.Equal(t, 4, violations[1].Order)
}

func TestSummarizeZeroSignal(t *testing.T) {
	signal := make([]float64, 100)
	s := Summarize(signal, records(0, 0, 0), 0, 0)

	assert.Equal(t, Summary{Compliant: true, Violations: []HarmonicRecord{}}, s)
}

func TestChannelResultHelpers(t *testing.T) {
	r := ChannelResult{Harmonics: records(10, 2, 0, 0.5)}
	_, r.Violations = Evaluate(r.Harmonics)

	fund, ok := r.Fundamental()
	require.True(t, ok)
	assert.Equal(t, 10.0, fund.Amplitude)
	assert.Equal(t, []int{2, 4}, r.ViolationOrders())

	empty := ChannelResult{}
	_, ok = empty.Fundamental()
	assert.False(t, ok)
}
