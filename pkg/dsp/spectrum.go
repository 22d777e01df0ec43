package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Periodogram estimates the power spectral density of x sampled at fs Hz
// using a single Hann windowed segment with the mean removed. It returns the
// bin frequencies and the one sided density.
func Periodogram(x []float64, fs float64) (freqs, psd []float64, err error) {
	n := len(x)
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: periodogram needs at least 2 samples", ErrTooShort)
	}

	seq := make([]float64, n)
	copy(seq, x)
	floats.AddConst(-stat.Mean(x, nil), seq)
	w := window.Hann(ones(n))
	floats.Mul(seq, w)

	coeff := fourier.NewFFT(n).Coefficients(nil, seq)

	norm := fs * floats.Dot(w, w)
	freqs = make([]float64, len(coeff))
	psd = make([]float64, len(coeff))
	for i, c := range coeff {
		freqs[i] = float64(i) * fs / float64(n)
		p := (real(c)*real(c) + imag(c)*imag(c)) / norm
		if i != 0 && !(n%2 == 0 && i == len(coeff)-1) {
			p *= 2
		}
		psd[i] = p
	}
	return freqs, psd, nil
}

// PeakFrequency returns the frequency with the largest spectral density.
func PeakFrequency(x []float64, fs float64) (float64, error) {
	freqs, psd, err := Periodogram(x, fs)
	if err != nil {
		return 0, err
	}
	return freqs[floats.MaxIdx(psd)], nil
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
