package analyzers

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/compliance"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
)

// DefaultFundamentalHz is returned when no bin falls inside the search band
const DefaultFundamentalHz = 50.0

// BinSearchRadius is how many bins either side of a harmonic's nominal bin
// are searched for the peak
const BinSearchRadius = 3

// Band is an inclusive frequency range in Hz
type Band struct {
	MinHz float64 `json:"min_hz" yaml:"min_hz"`
	MaxHz float64 `json:"max_hz" yaml:"max_hz"`
}

// DefaultBand covers 50 Hz and 60 Hz mains
func DefaultBand() Band {
	return Band{MinHz: 45, MaxHz: 65}
}

// SpectralAnalyzer locates the fundamental and measures each harmonic from
// one unwindowed full-length DFT
type SpectralAnalyzer struct {
	band   Band
	limits *compliance.LimitTable
	logger logging.Logger
}

// NewSpectralAnalyzer creates an analyzer scoring against limits. A nil
// table scores nothing; a nil logger falls back to the default.
func NewSpectralAnalyzer(band Band, limits *compliance.LimitTable, logger logging.Logger) *SpectralAnalyzer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SpectralAnalyzer{
		band:   band,
		limits: limits,
		logger: logger.WithFields(logging.Fields{
			"component": "spectral_analyzer",
		}),
	}
}

// Spectrum holds the non-negative half of a real signal's DFT
type Spectrum struct {
	bins       []complex128
	n          int
	sampleRate float64
}

// ComputeSpectrum runs the DFT once so the fundamental search, harmonic
// extraction and power factor can share it
func (sa *SpectralAnalyzer) ComputeSpectrum(signal []float64, sampleRate float64) *Spectrum {
	n := len(signal)
	s := &Spectrum{n: n, sampleRate: sampleRate}
	if n == 0 {
		return s
	}

	// mjibson/go-dsp handles non-power-of-2 lengths
	full := fft.FFTReal(signal)
	s.bins = full[:(n+1)/2]

	sa.logger.Debug("Spectrum computed", logging.Fields{
		"samples":        n,
		"bins":           len(s.bins),
		"bin_width_hz":   s.BinWidth(),
		"nyquist_hz":     sampleRate / 2,
		"sample_rate_hz": sampleRate,
	})
	return s
}

// Len returns the number of non-negative frequency bins
func (s *Spectrum) Len() int {
	return len(s.bins)
}

// BinWidth returns the frequency resolution in Hz
func (s *Spectrum) BinWidth() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sampleRate / float64(s.n)
}

// Frequency returns the centre frequency of bin k
func (s *Spectrum) Frequency(k int) float64 {
	return float64(k) * s.BinWidth()
}

// Magnitude returns bin k scaled by 2/N, the peak amplitude of a sinusoid
// centred on that bin
func (s *Spectrum) Magnitude(k int) float64 {
	return cmplx.Abs(s.bins[k]) * 2 / float64(s.n)
}

// PhaseDegrees returns the phase of bin k in (-180, 180]
func (s *Spectrum) PhaseDegrees(k int) float64 {
	deg := cmplx.Phase(s.bins[k]) * 180 / math.Pi
	if deg <= -180 {
		deg += 360
	}
	return deg
}

// NearestBin returns the bin closest to freq, ties resolved to the lower
// bin, clamped to the non-negative half
func (s *Spectrum) NearestBin(freq float64) int {
	if len(s.bins) == 0 {
		return 0
	}
	x := freq / s.BinWidth()
	if x <= 0 {
		return 0
	}
	k := math.Floor(x)
	if x-k > 0.5 {
		k++
	}
	if k > float64(len(s.bins)-1) {
		return len(s.bins) - 1
	}
	return int(k)
}

// Fundamental returns the frequency of the strongest bin inside band,
// or DefaultFundamentalHz when no bin falls in it
func (s *Spectrum) Fundamental(band Band) (float64, bool) {
	best, bestMag := -1, -1.0
	// search stops below Nyquist, matching the floor(N/2) half-spectrum
	for k := 0; k < s.n/2 && k < len(s.bins); k++ {
		f := s.Frequency(k)
		if f < band.MinHz || f > band.MaxHz {
			continue
		}
		if mag := cmplx.Abs(s.bins[k]); mag > bestMag {
			best, bestMag = k, mag
		}
	}
	if best < 0 {
		return DefaultFundamentalHz, false
	}
	return s.Frequency(best), true
}

// FindFundamental returns the dominant frequency inside the search band
func (sa *SpectralAnalyzer) FindFundamental(signal []float64, sampleRate float64) float64 {
	return sa.fundamental(sa.ComputeSpectrum(signal, sampleRate))
}

func (sa *SpectralAnalyzer) fundamental(s *Spectrum) float64 {
	freq, found := s.Fundamental(sa.band)
	if !found {
		sa.logger.Warn("No spectral bin inside fundamental search band, using default", logging.Fields{
			"band_min_hz":  sa.band.MinHz,
			"band_max_hz":  sa.band.MaxHz,
			"bin_width_hz": s.BinWidth(),
			"default_hz":   DefaultFundamentalHz,
		})
	}
	return freq
}

// ExtractHarmonics measures orders 1..numHarmonics. Each order takes the
// strongest bin within BinSearchRadius of its nominal frequency. Orders
// above Nyquist are not special-cased; their search lands on the last bins.
func (sa *SpectralAnalyzer) ExtractHarmonics(signal []float64, sampleRate, fundamental float64, numHarmonics int) []compliance.HarmonicRecord {
	return sa.harmonics(sa.ComputeSpectrum(signal, sampleRate), fundamental, numHarmonics)
}

func (sa *SpectralAnalyzer) harmonics(s *Spectrum, fundamental float64, numHarmonics int) []compliance.HarmonicRecord {
	records := make([]compliance.HarmonicRecord, 0, numHarmonics)
	aboveNyquist := 0

	for h := 1; h <= numHarmonics; h++ {
		target := float64(h) * fundamental
		limit := sa.limits.Limit(h)

		if s.Len() == 0 {
			records = append(records, compliance.NewHarmonicRecord(h, target, 0, 0, limit))
			continue
		}
		if target > s.sampleRate/2 {
			aboveNyquist++
		}

		center := s.NearestBin(target)
		lo := max(0, center-BinSearchRadius)
		hi := min(s.Len()-1, center+BinSearchRadius)

		peak := lo
		for k := lo + 1; k <= hi; k++ {
			if s.Magnitude(k) > s.Magnitude(peak) {
				peak = k
			}
		}

		records = append(records, compliance.NewHarmonicRecord(h, target, s.Magnitude(peak), s.PhaseDegrees(peak), limit))
	}

	if aboveNyquist > 0 {
		sa.logger.Debug("Harmonic orders beyond Nyquist", logging.Fields{
			"orders":     aboveNyquist,
			"nyquist_hz": s.sampleRate / 2,
		})
	}
	return records
}

// FundamentalMagnitude returns the 2/N magnitude of the bin nearest the
// fundamental, without the local peak search
func (sa *SpectralAnalyzer) FundamentalMagnitude(signal []float64, sampleRate, fundamental float64) float64 {
	return fundamentalMagnitude(sa.ComputeSpectrum(signal, sampleRate), fundamental)
}

func fundamentalMagnitude(s *Spectrum, fundamental float64) float64 {
	if s.Len() == 0 {
		return 0
	}
	return s.Magnitude(s.NearestBin(fundamental))
}

// Measurement is everything the spectrum yields for one signal
type Measurement struct {
	FundamentalHz        float64
	FundamentalMagnitude float64
	Harmonics            []compliance.HarmonicRecord
}

// Measure finds the fundamental and extracts harmonics from one DFT
func (sa *SpectralAnalyzer) Measure(signal []float64, sampleRate float64, numHarmonics int) Measurement {
	s := sa.ComputeSpectrum(signal, sampleRate)
	fund := sa.fundamental(s)
	return Measurement{
		FundamentalHz:        fund,
		FundamentalMagnitude: fundamentalMagnitude(s, fund),
		Harmonics:            sa.harmonics(s, fund, numHarmonics),
	}
}
