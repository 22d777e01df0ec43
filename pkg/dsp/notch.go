package dsp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFilter is returned when filter parameters are outside the usable range.
var ErrInvalidFilter = errors.New("invalid filter parameters")

// NotchCoefficients designs a second order IIR notch at f0 Hz with quality
// factor q for a signal sampled at fs Hz. The -3 dB bandwidth is f0/q.
// It returns numerator b and denominator a, with a[0] == 1.
func NotchCoefficients(f0, q, fs float64) (b, a []float64, err error) {
	if fs <= 0 || q <= 0 {
		return nil, nil, fmt.Errorf("%w: notch fs=%g q=%g", ErrInvalidFilter, fs, q)
	}

	w0 := 2 * f0 / fs
	if w0 <= 0 || w0 >= 1 {
		return nil, nil, fmt.Errorf("%w: notch frequency %g Hz must lie in (0, %g)", ErrInvalidFilter, f0, fs/2)
	}

	bw := math.Pi * w0 / q
	w0 *= math.Pi

	// Attenuation at the band edges is -3 dB, so beta reduces to tan(bw/2).
	beta := math.Tan(bw / 2)
	gain := 1 / (1 + beta)
	c := -2 * gain * math.Cos(w0)

	b = []float64{gain, c, gain}
	a = []float64{1, c, 2*gain - 1}
	return b, a, nil
}
