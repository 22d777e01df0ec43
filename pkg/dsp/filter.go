package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// normalize pads b and a to equal length and divides both by a[0].
func normalize(b, a []float64) ([]float64, []float64, error) {
	if len(a) == 0 || len(b) == 0 || a[0] == 0 {
		return nil, nil, fmt.Errorf("%w: empty coefficients or a[0] == 0", ErrInvalidFilter)
	}
	n := max(len(a), len(b))
	nb := make([]float64, n)
	na := make([]float64, n)
	copy(nb, b)
	copy(na, a)
	floats.Scale(1/a[0], nb)
	floats.Scale(1/a[0], na)
	return nb, na, nil
}

// LFilter runs the IIR filter (b, a) over x in direct form II transposed.
// zi is the initial delay line state (len max(len a, len b)-1) and may be nil
// for a zero state. It returns the filtered signal and the final state.
func LFilter(b, a, x, zi []float64) ([]float64, []float64, error) {
	b, a, err := normalize(b, a)
	if err != nil {
		return nil, nil, err
	}

	order := len(a) - 1
	z := make([]float64, order)
	if zi != nil {
		if len(zi) != order {
			return nil, nil, fmt.Errorf("%w: initial state has length %d, want %d", ErrInvalidFilter, len(zi), order)
		}
		copy(z, zi)
	}

	y := make([]float64, len(x))
	for n, xn := range x {
		yn := b[0]*xn
		if order > 0 {
			yn += z[0]
		}
		for i := 0; i < order-1; i++ {
			z[i] = b[i+1]*xn + z[i+1] - a[i+1]*yn
		}
		if order > 0 {
			z[order-1] = b[order]*xn - a[order]*yn
		}
		y[n] = yn
	}

	return y, z, nil
}

// LFilterZI returns the delay line state that makes LFilter start in steady
// state for a unit step input. Scale it by the first input sample.
func LFilterZI(b, a []float64) ([]float64, error) {
	b, a, err := normalize(b, a)
	if err != nil {
		return nil, err
	}

	n := len(a) - 1
	if n == 0 {
		return []float64{}, nil
	}

	// (I - companion(a)^T) zi = b[1:] - a[1:]*b[0]
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
		m.Set(i, 0, m.At(i, 0)+a[i+1])
		if i+1 < n {
			m.Set(i, i+1, -1)
		}
	}

	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = b[i+1] - a[i+1]*b[0]
	}

	var zi mat.VecDense
	if err := zi.SolveVec(m, mat.NewVecDense(n, rhs)); err != nil {
		return nil, fmt.Errorf("%w: steady state: %w", ErrInvalidFilter, err)
	}

	return zi.RawVector().Data, nil
}

// PadLen returns the number of samples FiltFilt extends each edge by.
func PadLen(b, a []float64) int {
	return 3 * max(len(a), len(b))
}

// FiltFilt applies (b, a) forward and backward for zero phase distortion.
// Edges are extended by odd reflection of PadLen samples and the filter is
// started in steady state. x must be longer than PadLen.
//
// A denominator with a root close to z=1, as in a very low frequency notch
// with a small q, decays its initial state over many thousands of samples.
// The output then carries a nearly constant offset that is not in x.
func FiltFilt(b, a, x []float64) ([]float64, error) {
	padlen := PadLen(b, a)
	if len(x) <= padlen {
		return nil, fmt.Errorf("%w: input length %d must be greater than padlen %d", ErrTooShort, len(x), padlen)
	}

	zi, err := LFilterZI(b, a)
	if err != nil {
		return nil, err
	}

	ext := oddExtend(x, padlen)

	fwd, _, err := LFilter(b, a, ext, scaled(zi, ext[0]))
	if err != nil {
		return nil, err
	}

	floats.Reverse(fwd)
	bwd, _, err := LFilter(b, a, fwd, scaled(zi, fwd[0]))
	if err != nil {
		return nil, err
	}
	floats.Reverse(bwd)

	out := make([]float64, len(x))
	copy(out, bwd[padlen:padlen+len(x)])
	return out, nil
}

// oddExtend mirrors n samples around each end point: 2*x[0]-x[n..1] and 2*x[-1]-x[-2..-n-1].
func oddExtend(x []float64, n int) []float64 {
	last := len(x) - 1
	ext := make([]float64, 0, len(x)+2*n)
	for i := n; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := 1; i <= n; i++ {
		ext = append(ext, 2*x[last]-x[last-i])
	}
	return ext
}

func scaled(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	floats.ScaleTo(out, k, v)
	return out
}
