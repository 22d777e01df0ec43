package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func constant(n int, v float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = v
	}
	return x
}

func TestButterFiltFilt_DC(t *testing.T) {
	lp, err := ButterFiltFilt(Lowpass, 0, 5, 100, constant(200, 7))
	require.NoError(t, err)
	assert.InDeltaSlice(t, constant(200, 7), lp, 1e-9)

	hp, err := ButterFiltFilt(Highpass, 1, 0, 100, constant(200, 7))
	require.NoError(t, err)
	assert.InDeltaSlice(t, constant(200, 0), hp, 1e-9)
}

func TestButterFiltFilt_Bandpass(t *testing.T) {
	fs := 100.0
	x := make([]float64, 2000)
	for i := range x {
		tm := float64(i) / fs
		x[i] = math.Sin(2*math.Pi*2*tm) + math.Sin(2*math.Pi*40*tm)
	}

	y, err := ButterFiltFilt(Bandpass, 0.5, 5, fs, x)
	require.NoError(t, err)
	require.Len(t, y, len(x))

	// 40 Hz is well above the passband and mostly removed
	freq, err := PeakFrequency(y[200:1800], fs)
	require.NoError(t, err)
	assert.InDelta(t, 2, freq, 0.1)
	assert.Less(t, floats.Max(y[200:1800]), 1.5)
}

func TestButterFiltFilt_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		kind      FilterKind
		low, high float64
	}{
		{"lowpass above nyquist", Lowpass, 0, 60},
		{"highpass zero", Highpass, 0, 0},
		{"band inverted", Bandpass, 5, 1},
		{"unknown kind", FilterKind("notch"), 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ButterFiltFilt(tt.kind, tt.low, tt.high, 100, constant(10, 1))
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}

	_, err := ButterFiltFilt(Lowpass, 0, 5, 100, nil)
	assert.ErrorIs(t, err, ErrTooShort)
}
