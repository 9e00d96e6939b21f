package filters

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavGol is a Savitzky-Golay smoother. Edges are fitted with the
// polynomial of the first and last full window.
type SavGol struct {
	Window    int
	PolyOrder int
}

// Apply smooths the signal. A window longer than the signal shrinks to the
// largest odd length that fits; if that cannot hold the polynomial the
// signal passes through unchanged.
func (sg *SavGol) Apply(signal []float64, _ float64) ([]float64, string) {
	n := len(signal)
	out := make([]float64, n)
	copy(out, signal)

	window := sg.Window
	if window%2 == 0 {
		window++
	}
	if window > n {
		window = n
		if window%2 == 0 {
			window--
		}
	}
	if window <= sg.PolyOrder || window < 1 {
		return out, fmt.Sprintf("savgol skipped (n=%d)", n)
	}
	descriptor := fmt.Sprintf("savgol w=%d", window)

	proj, err := savgolProjection(window, sg.PolyOrder)
	if err != nil {
		return out, fmt.Sprintf("savgol skipped (%v)", err)
	}

	half := window / 2
	dot := func(row, offset int) float64 {
		var sum float64
		for i := 0; i < window; i++ {
			sum += proj.At(row, i) * signal[offset+i]
		}
		return sum
	}

	for k := half; k < n-half; k++ {
		out[k] = dot(half, k-half)
	}
	for k := 0; k < half; k++ {
		out[k] = dot(k, 0)
	}
	tail := n - window
	for k := n - half; k < n; k++ {
		out[k] = dot(k-tail, tail)
	}
	return out, descriptor
}

// savgolProjection returns A(AᵀA)⁻¹Aᵀ for the Vandermonde matrix A over the
// window positions scaled to [-1, 1]. Row i evaluates the least-squares
// polynomial at position i.
func savgolProjection(window, order int) (*mat.Dense, error) {
	half := window / 2
	scale := float64(max(half, 1))

	a := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		t := float64(i-half) / scale
		v := 1.0
		for j := 0; j <= order; j++ {
			a.Set(i, j, v)
			v *= t
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, err
		}
	}

	var pinv mat.Dense
	pinv.Mul(&inv, a.T())

	var proj mat.Dense
	proj.Mul(a, &pinv)
	return &proj, nil
}
