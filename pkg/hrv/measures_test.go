package hrv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(m Measures) []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Name
	}
	return out
}

func TestMeasures_SetGet(t *testing.T) {
	var m Measures
	m.Set("bpm", 70)
	m.Set("ibi", 857)
	m.Set("bpm", 71)

	assert.Equal(t, []string{"bpm", "ibi"}, names(m))
	v, ok := m.Get("bpm")
	assert.True(t, ok)
	assert.Equal(t, 71.0, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMeasures_TimeSeries(t *testing.T) {
	rr := []float64{800, 820, 810, 830, 790}
	diff := []float64{20, 10, 20, 40}
	sq := []float64{400, 100, 400, 1600}

	var m Measures
	m.timeSeries(rr, diff, sq)
	m.poincare(rr, make([]bool, len(rr)))

	want := map[string]float64{
		"bpm":     74.07407407407408,
		"ibi":     810,
		"sdnn":    14.142135623730951,
		"sdsd":    10.897247358851684,
		"rmssd":   25,
		"pnn20":   0.25,
		"pnn50":   0,
		"hr_mad":  10,
		"sd1":     17.58905909933786,
		"sd2":     5.863019699779249,
		"s":       323.9767424014453,
		"sd1/sd2": 3,
	}
	for name, v := range want {
		got, ok := m.Get(name)
		require.True(t, ok, name)
		assert.InDelta(t, v, got, 1e-9, name)
	}
}

func TestMeasures_EmptyDiffsAreNaN(t *testing.T) {
	var m Measures
	m.timeSeries([]float64{800}, nil, nil)

	bpm, _ := m.Get("bpm")
	assert.InDelta(t, 75, bpm, 1e-12)
	for _, name := range []string{"sdsd", "rmssd", "pnn20", "pnn50"} {
		v, _ := m.Get(name)
		assert.True(t, math.IsNaN(v), name)
	}
}

func TestMeasures_PoincareSkipsMasked(t *testing.T) {
	var m Measures
	m.poincare([]float64{800, 1600, 800, 810}, []bool{false, true, false, false})

	// only the (800, 810) pair remains
	sd1, _ := m.Get("sd1")
	assert.Equal(t, 0.0, sd1)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
	assert.True(t, math.IsNaN(median(nil)))
}

func TestBreathingRate(t *testing.T) {
	// intervals modulated at 0.25 Hz
	var rr []float64
	tm := 0.0
	for tm < 60 {
		v := 1000 + 50*math.Sin(2*math.Pi*0.25*tm)
		rr = append(rr, v)
		tm += v / 1000
	}

	assert.InDelta(t, 0.25, breathingRate(rr), 0.03)
	assert.True(t, math.IsNaN(breathingRate([]float64{800, 810, 790})))
}
