package filters

import "fmt"

// MovingAverage is a centered boxcar. Output keeps the input length; the
// kernel is truncated at the edges without renormalizing.
type MovingAverage struct {
	Window int
}

func (ma *MovingAverage) Apply(signal []float64, _ float64) ([]float64, string) {
	window := max(ma.Window, 1)
	n := len(signal)
	out := make([]float64, n)

	weight := 1 / float64(window)
	shift := (window - 1) / 2
	for i := range out {
		j := i + shift
		lo := max(j-window+1, 0)
		hi := min(j, n-1)
		var sum float64
		for k := lo; k <= hi; k++ {
			sum += signal[k]
		}
		out[i] = sum * weight
	}
	return out, fmt.Sprintf("moving_avg w=%d", window)
}
