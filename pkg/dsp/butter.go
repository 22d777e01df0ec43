package dsp

import (
	"fmt"
	"math"

	"github.com/jfcg/butter"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FilterKind selects a Butterworth response.
type FilterKind string

const (
	Lowpass  FilterKind = "lowpass"
	Highpass FilterKind = "highpass"
	Bandpass FilterKind = "bandpass"
)

type stepper interface {
	Next(float64) float64
}

// cutoff converts a frequency in Hz to the normalized angular cutoff butter expects.
func cutoff(hz, fs float64) float64 {
	return 2 * math.Pi * hz / fs
}

func newStage(kind FilterKind, hz, fs float64) (stepper, error) {
	wc := cutoff(hz, fs)
	switch kind {
	case Lowpass:
		if f := butter.NewLowPass1(wc); f != nil {
			return f, nil
		}
	case Highpass:
		if f := butter.NewHighPass1(wc); f != nil {
			return f, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown filter kind %q", ErrInvalidFilter, kind)
	}
	return nil, fmt.Errorf("%w: %s cutoff %g Hz at fs %g Hz (wc=%f, expect .0001 < wc < 3.1415)", ErrInvalidFilter, kind, hz, fs, wc)
}

func (k FilterKind) stages(low, high, fs float64) ([]stepper, error) {
	switch k {
	case Lowpass:
		s, err := newStage(Lowpass, high, fs)
		return []stepper{s}, err
	case Highpass:
		s, err := newStage(Highpass, low, fs)
		return []stepper{s}, err
	case Bandpass:
		if low >= high {
			return nil, fmt.Errorf("%w: bandpass low %g must be below high %g", ErrInvalidFilter, low, high)
		}
		hp, err := newStage(Highpass, low, fs)
		if err != nil {
			return nil, err
		}
		lp, err := newStage(Lowpass, high, fs)
		if err != nil {
			return nil, err
		}
		return []stepper{lp, hp}, nil
	}
	return nil, fmt.Errorf("%w: unknown filter kind %q", ErrInvalidFilter, k)
}

// ButterFiltFilt runs a first order Butterworth filter forward and then
// backward over x. low is the highpass corner and high the lowpass corner in
// Hz; the one a kind does not use is ignored. The signal mean is removed
// before filtering and restored for lowpass responses.
func ButterFiltFilt(kind FilterKind, low, high, fs float64, x []float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("%w: cannot filter an empty signal", ErrTooShort)
	}

	mean := stat.Mean(x, nil)
	y := make([]float64, len(x))
	copy(y, x)
	floats.AddConst(-mean, y)

	for pass := 0; pass < 2; pass++ {
		stages, err := kind.stages(low, high, fs)
		if err != nil {
			return nil, err
		}
		for i, v := range y {
			for _, s := range stages {
				v = s.Next(v)
			}
			y[i] = v
		}
		floats.Reverse(y)
	}

	if kind == Lowpass {
		floats.AddConst(mean, y)
	}
	return y, nil
}
