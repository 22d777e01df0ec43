package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeakFrequency(t *testing.T) {
	fs := 1000.0
	x := make([]float64, 8000)
	for i := range x {
		x[i] = 900 + 40*math.Sin(2*math.Pi*0.25*float64(i)/fs)
	}

	f, err := PeakFrequency(x, fs)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, f, 1e-9)
}

func TestPeriodogram(t *testing.T) {
	freqs, psd, err := Periodogram([]float64{1, -1, 1, -1, 1, -1, 1, -1}, 8)
	require.NoError(t, err)
	require.Len(t, freqs, 5)
	require.Len(t, psd, 5)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, freqs)

	_, _, err = Periodogram([]float64{1}, 8)
	assert.ErrorIs(t, err, ErrTooShort)
}
