package dsp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrTooShort is returned when a signal is too short for the requested operation.
var ErrTooShort = errors.New("signal too short")

// Resample changes the length of x to num samples with the Fourier method,
// assuming x is periodic. When upsampling an even length signal the Nyquist
// bin is split between its positive and negative frequency images.
func Resample(x []float64, num int) ([]float64, error) {
	nx := len(x)
	if nx == 0 {
		return nil, fmt.Errorf("%w: cannot resample an empty signal", ErrTooShort)
	}
	if num < 1 {
		return nil, fmt.Errorf("resample: target length %d must be positive", num)
	}

	X := fourier.NewFFT(nx).Coefficients(nil, x)
	Y := make([]complex128, num/2+1)

	n := min(num, nx)
	nyq := n/2 + 1
	copy(Y[:nyq], X[:nyq])
	if n%2 == 0 {
		switch {
		case num < nx:
			Y[n/2] *= 2
		case num > nx:
			Y[n/2] *= 0.5
		}
	}

	y := fourier.NewFFT(num).Sequence(nil, Y)
	k := 1 / float64(nx)
	for i := range y {
		y[i] *= k
	}
	return y, nil
}
