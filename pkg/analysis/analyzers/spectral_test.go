package analyzers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/compliance"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
)

const (
	testSampleRate = 10000.0
	testSamples    = 10000
)

func tone(components map[int]float64, fundamental float64) []float64 {
	out := make([]float64, testSamples)
	for i := range out {
		t := float64(i) / testSampleRate
		for order, amp := range components {
			out[i] += amp * math.Sin(2*math.Pi*float64(order)*fundamental*t)
		}
	}
	return out
}

type SpectralAnalyzerTestSuite struct {
	suite.Suite
	analyzer *SpectralAnalyzer
}

func (s *SpectralAnalyzerTestSuite) SetupTest() {
	s.analyzer = NewSpectralAnalyzer(DefaultBand(), compliance.ClassALimits(), logging.NewNopLogger())
}

func (s *SpectralAnalyzerTestSuite) TestPureSine() {
	signal := tone(map[int]float64{1: 1}, 50)

	fund := s.analyzer.FindFundamental(signal, testSampleRate)
	s.InDelta(50.0, fund, 0.5)

	harmonics := s.analyzer.ExtractHarmonics(signal, testSampleRate, fund, 40)
	s.Require().Len(harmonics, 40)
	s.InDelta(1.0, harmonics[0].Amplitude, 1e-6)
	s.Equal(compliance.StatusFundamental, harmonics[0].Status)
	s.InDelta(0.0, compliance.THD(harmonics), 0.5)

	for i, h := range harmonics {
		s.Equal(i+1, h.Order)
		s.InDelta(float64(i+1)*fund, h.Frequency, 1e-9)
	}
}

func (s *SpectralAnalyzerTestSuite) TestThirdHarmonicTenPercent() {
	signal := tone(map[int]float64{1: 1, 3: 0.1}, 50)

	fund := s.analyzer.FindFundamental(signal, testSampleRate)
	harmonics := s.analyzer.ExtractHarmonics(signal, testSampleRate, fund, 40)

	ratio := harmonics[2].Amplitude / harmonics[0].Amplitude
	s.InDelta(0.10, ratio, 0.005)
	s.InDelta(10.0, compliance.THD(harmonics), 1.0)
	// 0.1 A is well under the 2.30 A order-3 limit
	s.Equal(compliance.StatusPass, harmonics[2].Status)
}

func (s *SpectralAnalyzerTestSuite) TestThirdHarmonicOverLimit() {
	signal := tone(map[int]float64{1: 30, 3: 3}, 50)

	fund := s.analyzer.FindFundamental(signal, testSampleRate)
	harmonics := s.analyzer.ExtractHarmonics(signal, testSampleRate, fund, 40)

	s.InDelta(3.0, harmonics[2].Amplitude, 1e-6)
	s.Equal(compliance.StatusFail, harmonics[2].Status)
	s.InDelta(3.0/2.30*100, harmonics[2].PercentOfLimit, 1e-3)

	compliant, violations := compliance.Evaluate(harmonics)
	s.False(compliant)
	s.Require().Len(violations, 1)
	s.Equal(3, violations[0].Order)
}

func (s *SpectralAnalyzerTestSuite) TestSixtyHertzMains() {
	signal := tone(map[int]float64{1: 1}, 60)
	s.InDelta(60.0, s.analyzer.FindFundamental(signal, testSampleRate), 0.5)
}

func (s *SpectralAnalyzerTestSuite) TestPhase() {
	sine := tone(map[int]float64{1: 1}, 50)
	harmonics := s.analyzer.ExtractHarmonics(sine, testSampleRate, 50, 10)
	s.InDelta(-90.0, harmonics[0].PhaseDegrees, 1e-6)

	cosine := make([]float64, testSamples)
	for i := range cosine {
		cosine[i] = math.Cos(2 * math.Pi * 50 * float64(i) / testSampleRate)
	}
	harmonics = s.analyzer.ExtractHarmonics(cosine, testSampleRate, 50, 10)
	s.InDelta(0.0, harmonics[0].PhaseDegrees, 1e-6)

	for _, h := range harmonics {
		s.Greater(h.PhaseDegrees, -180.0)
		s.LessOrEqual(h.PhaseDegrees, 180.0)
	}
}

func (s *SpectralAnalyzerTestSuite) TestOrdersBeyondNyquist() {
	const sr = 1000.0
	signal := make([]float64, 1000)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 50 * float64(i) / sr)
	}

	harmonics := s.analyzer.ExtractHarmonics(signal, sr, 50, 50)
	s.Require().Len(harmonics, 50)

	// 10 x 50 Hz reaches Nyquist; everything above still gets a record
	for _, h := range harmonics[10:] {
		s.GreaterOrEqual(h.Amplitude, 0.0)
		s.False(math.IsNaN(h.Amplitude))
		s.NotEqual(compliance.StatusFundamental, h.Status)
	}
	for _, h := range harmonics[40:] {
		s.Equal(0.0, h.Limit)
		s.Equal(compliance.StatusPass, h.Status)
	}
}

func (s *SpectralAnalyzerTestSuite) TestEmptySignal() {
	s.Equal(DefaultFundamentalHz, s.analyzer.FindFundamental(nil, testSampleRate))

	harmonics := s.analyzer.ExtractHarmonics(nil, testSampleRate, 50, 40)
	s.Require().Len(harmonics, 40)
	for _, h := range harmonics {
		s.Equal(0.0, h.Amplitude)
		s.NotEqual(compliance.StatusFail, h.Status)
	}
	s.Equal(0.0, s.analyzer.FundamentalMagnitude(nil, testSampleRate, 50))
}

func (s *SpectralAnalyzerTestSuite) TestZeroSignal() {
	signal := make([]float64, testSamples)
	m := s.analyzer.Measure(signal, testSampleRate, 40)

	s.GreaterOrEqual(m.FundamentalHz, 45.0)
	s.LessOrEqual(m.FundamentalHz, 65.0)
	s.Equal(0.0, m.FundamentalMagnitude)
	for _, h := range m.Harmonics {
		s.Equal(0.0, h.Amplitude)
	}
	compliant, _ := compliance.Evaluate(m.Harmonics)
	s.True(compliant)
}

func (s *SpectralAnalyzerTestSuite) TestMeasureMatchesSeparateCalls() {
	signal := tone(map[int]float64{1: 2, 5: 0.3, 7: 0.1}, 50)

	m := s.analyzer.Measure(signal, testSampleRate, 40)
	fund := s.analyzer.FindFundamental(signal, testSampleRate)

	s.Equal(fund, m.FundamentalHz)
	s.Equal(s.analyzer.ExtractHarmonics(signal, testSampleRate, fund, 40), m.Harmonics)
	s.Equal(s.analyzer.FundamentalMagnitude(signal, testSampleRate, fund), m.FundamentalMagnitude)
	s.InDelta(2.0, m.FundamentalMagnitude, 1e-6)
}

func TestSpectralAnalyzerTestSuite(t *testing.T) {
	suite.Run(t, new(SpectralAnalyzerTestSuite))
}

func TestNearestBin(t *testing.T) {
	s := &Spectrum{bins: make([]complex128, 5), n: 10, sampleRate: 10}

	assert.Equal(t, 1.0, s.BinWidth())
	assert.Equal(t, 2, s.NearestBin(2.5), "ties resolve to the lower bin")
	assert.Equal(t, 3, s.NearestBin(2.6))
	assert.Equal(t, 0, s.NearestBin(-3))
	assert.Equal(t, 4, s.NearestBin(100))
}

func TestFundamentalOutsideBand(t *testing.T) {
	// 10 Hz bins: 0..40 Hz, none inside 45..65
	s := &Spectrum{bins: make([]complex128, 5), n: 10, sampleRate: 100}

	freq, found := s.Fundamental(DefaultBand())
	assert.False(t, found)
	assert.Equal(t, DefaultFundamentalHz, freq)
}

func TestNilLimitTableScoresNothing(t *testing.T) {
	analyzer := NewSpectralAnalyzer(DefaultBand(), nil, logging.NewNopLogger())
	signal := tone(map[int]float64{1: 30, 3: 10}, 50)

	harmonics := analyzer.ExtractHarmonics(signal, testSampleRate, 50, 10)
	require.Len(t, harmonics, 10)
	for _, h := range harmonics[1:] {
		assert.Equal(t, 0.0, h.Limit)
		assert.Equal(t, compliance.StatusPass, h.Status)
	}
}
