package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

func TestSignalTypeUnits(t *testing.T) {
	assert.Equal(t, "A", SignalCurrent.Unit())
	assert.Equal(t, "V", SignalVoltage.Unit())
	assert.Equal(t, "V/A", SignalMixed.Unit())
}

func TestParseSignalTypeAndFilterKind(t *testing.T) {
	st, err := ParseSignalType(" Current ")
	require.NoError(t, err)
	assert.Equal(t, SignalCurrent, st)

	_, err = ParseSignalType("power")
	assert.ErrorIs(t, err, common.ErrInvalidConfiguration)

	kind, err := ParseFilterKind("smooth")
	require.NoError(t, err)
	assert.Equal(t, FilterSmooth, kind)

	_, err = ParseFilterKind("kalman")
	assert.ErrorIs(t, err, common.ErrInvalidConfiguration)
}

func TestChannelScale(t *testing.T) {
	current := ChannelConfig{SignalType: SignalCurrent, Ratio: 20}
	voltage := ChannelConfig{SignalType: SignalVoltage, Ratio: 20}

	assert.Equal(t, 20.0, current.Scale())
	assert.Equal(t, VoltageProbeFactor, voltage.Scale())
}

func TestChannelValidate(t *testing.T) {
	assert.NoError(t, DefaultChannelConfig().Validate())

	bad := DefaultChannelConfig()
	bad.Ratio = 0
	assert.ErrorIs(t, bad.Validate(), common.ErrInvalidConfiguration)

	// ratio is irrelevant for voltage channels
	voltage := ChannelConfig{SignalType: SignalVoltage}
	assert.NoError(t, voltage.Validate())

	badFilter := DefaultChannelConfig()
	badFilter.Filter = FilterConfig{Enabled: true, Kind: "notch"}
	assert.ErrorIs(t, badFilter.Validate(), common.ErrInvalidConfiguration)
}

func TestAnalysisConfigValidate(t *testing.T) {
	cfg := DefaultAnalysisConfig()
	assert.NoError(t, cfg.Validate())

	for _, n := range []int{9, 51, 0} {
		cfg.NumHarmonics = n
		assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidConfiguration, "n=%d", n)
	}

	cfg = DefaultAnalysisConfig()
	cfg.FundamentalMaxHz = 40
	assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidConfiguration)
}

func TestLookupRatioPreset(t *testing.T) {
	ratio, ok := LookupRatioPreset("5a->0.25v")
	assert.True(t, ok)
	assert.Equal(t, 20.0, ratio)

	_, ok = LookupRatioPreset("manual")
	assert.False(t, ok)
}
