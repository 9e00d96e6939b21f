package filters

import (
	"fmt"
	"math"
)

// LowPass is a Butterworth low-pass applied forward and backward, so the
// result has zero phase and twice the design order in magnitude.
type LowPass struct {
	CutoffHz float64
	Order    int // even; defaults to 4
}

// Apply filters the signal. The cutoff is clamped to 0.9x Nyquist.
func (lp *LowPass) Apply(signal []float64, sampleRate float64) ([]float64, string) {
	order := lp.Order
	if order <= 0 {
		order = 4
	}
	cutoff := math.Min(lp.CutoffHz, 0.9*sampleRate/2)
	descriptor := fmt.Sprintf("lowpass %.0fHz", cutoff)

	if len(signal) == 0 {
		return []float64{}, descriptor
	}

	sections := butterworthSections(order, cutoff, sampleRate)
	return filtfilt(sections, signal), descriptor
}

// biquad is one second-order section in transposed direct form II, a0 = 1
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func (s biquad) dcGain() float64 {
	return (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
}

// butterworthSections designs the digital filter by the bilinear transform
// with prewarping, one biquad per conjugate pole pair
func butterworthSections(order int, cutoff, sampleRate float64) []biquad {
	k := math.Tan(math.Pi * cutoff / sampleRate)
	k2 := k * k

	sections := make([]biquad, 0, order/2)
	for i := 0; i < order/2; i++ {
		theta := float64(2*i+1) * math.Pi / float64(2*order)
		q := 1 / (2 * math.Cos(theta))

		norm := 1 / (1 + k/q + k2)
		b0 := k2 * norm
		sections = append(sections, biquad{
			b0: b0,
			b1: 2 * b0,
			b2: b0,
			a1: 2 * (k2 - 1) * norm,
			a2: (1 - k/q + k2) * norm,
		})
	}
	return sections
}

// steadyState returns each section's state for a unit step already in
// progress, scaled by the DC gain of the sections before it
func steadyState(sections []biquad) [][2]float64 {
	zi := make([][2]float64, len(sections))
	scale := 1.0
	for i, s := range sections {
		g := s.dcGain()
		zi[i] = [2]float64{(g - s.b0) * scale, (s.b2 - s.a2*g) * scale}
		scale *= g
	}
	return zi
}

// cascade runs x through every section, starting each from zi*x0
func cascade(sections []biquad, zi [][2]float64, x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	if len(x) == 0 {
		return y
	}

	x0 := x[0]
	for i, s := range sections {
		z1, z2 := zi[i][0]*x0, zi[i][1]*x0
		for n, in := range y {
			out := s.b0*in + z1
			z1 = s.b1*in - s.a1*out + z2
			z2 = s.b2*in - s.a2*out
			y[n] = out
		}
	}
	return y
}

// filtfilt pads with an odd reflection of 3*(order+1) samples, filters
// forward then backward, and strips the padding
func filtfilt(sections []biquad, x []float64) []float64 {
	n := len(x)
	padlen := min(3*(2*len(sections)+1), n-1)

	ext := make([]float64, 0, n+2*padlen)
	for i := padlen; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-padlen; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := steadyState(sections)

	y := cascade(sections, zi, ext)
	reverse(y)
	y = cascade(sections, zi, y)
	reverse(y)

	out := make([]float64, n)
	copy(out, y[padlen:padlen+n])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
