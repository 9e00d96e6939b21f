package compliance

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// THDMaxOrder is the highest order summed into THD and TDD. It does not
// follow the configured harmonic count.
const THDMaxOrder = 40

// RMS returns sqrt(mean(x^2)), 0 for an empty signal
func RMS(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(signal, signal) / float64(len(signal)))
}

// Peak returns max(|x|), 0 for an empty signal
func Peak(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(signal)), math.Abs(floats.Min(signal)))
}

// CrestFactor returns peak/rms, 0 when rms is 0
func CrestFactor(peak, rms float64) float64 {
	if rms == 0 {
		return 0
	}
	return peak / rms
}

// harmonicSum is the root-sum-square of orders 2..THDMaxOrder
func harmonicSum(harmonics []HarmonicRecord) float64 {
	var sum float64
	for _, h := range harmonics {
		if h.Order >= 2 && h.Order <= THDMaxOrder {
			sum += h.Amplitude * h.Amplitude
		}
	}
	return math.Sqrt(sum)
}

func fundamentalAmplitude(harmonics []HarmonicRecord) float64 {
	for _, h := range harmonics {
		if h.Order == 1 {
			return h.Amplitude
		}
	}
	return 0
}

// THD returns total harmonic distortion in percent of the fundamental,
// 0 when the fundamental amplitude is 0
func THD(harmonics []HarmonicRecord) float64 {
	fundamental := fundamentalAmplitude(harmonics)
	if fundamental == 0 {
		return 0
	}
	return harmonicSum(harmonics) / fundamental * 100
}

// TDD is THD against referenceRMS. A non-positive reference falls back to
// the fundamental amplitude.
func TDD(harmonics []HarmonicRecord, referenceRMS float64) float64 {
	divisor := referenceRMS
	if divisor <= 0 {
		divisor = fundamentalAmplitude(harmonics)
	}
	if divisor == 0 {
		return 0
	}
	return harmonicSum(harmonics) / divisor * 100
}

// PowerFactor approximates the displacement factor as the fundamental bin
// magnitude over signal RMS, clamped to 1. Returns 0 for a silent signal.
func PowerFactor(fundamentalMagnitude, rms float64) float64 {
	if rms == 0 {
		return 0
	}
	return math.Min(1, fundamentalMagnitude/rms)
}

// Evaluate reports whether no harmonic above the fundamental fails, and
// the failing records
func Evaluate(harmonics []HarmonicRecord) (bool, []HarmonicRecord) {
	violations := []HarmonicRecord{}
	for _, h := range harmonics {
		if h.Order >= 2 && h.Status == StatusFail {
			violations = append(violations, h)
		}
	}
	return len(violations) == 0, violations
}

// Summary is the scalar part of a channel evaluation
type Summary struct {
	THDPercent  float64
	TDDPercent  float64
	RMS         float64
	Peak        float64
	CrestFactor float64
	PowerFactor float64
	Compliant   bool
	Violations  []HarmonicRecord
}

// Summarize computes every metric for a detrended signal and its
// harmonics. referenceRMS feeds TDD; pass 0 to use the fundamental.
func Summarize(signal []float64, harmonics []HarmonicRecord, fundamentalMagnitude, referenceRMS float64) Summary {
	rms := RMS(signal)
	peak := Peak(signal)
	compliant, violations := Evaluate(harmonics)

	return Summary{
		THDPercent:  THD(harmonics),
		TDDPercent:  TDD(harmonics, referenceRMS),
		RMS:         rms,
		Peak:        peak,
		CrestFactor: CrestFactor(peak, rms),
		PowerFactor: PowerFactor(fundamentalMagnitude, rms),
		Compliant:   compliant,
		Violations:  violations,
	}
}
