package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsample_NoDownsampling(t *testing.T) {
	src := []float64{1.0, 1.1, 1.2}

	// Test with nil dst
	result := Downsample(nil, src, 10)
	assert.Equal(t, src, result)

	// Test with sufficient capacity dst
	dst := make([]float64, 0, 10)
	result = Downsample(dst, src, 10)
	assert.Equal(t, src, result)
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	src := make([]float64, 100)
	for i := range src {
		src[i] = float64(i) * 0.01
	}

	dst := make([]float64, 0, 20)
	result := Downsample(dst, src, 10)
	require.Len(t, result, 10)

	assert.Equal(t, src[0], result[0])
	assert.GreaterOrEqual(t, result[len(result)-1], 0.8)
	for i := 1; i < len(result); i++ {
		assert.Greater(t, result[i], result[i-1])
	}
}

func TestDownsample_DestinationReuse(t *testing.T) {
	dst := make([]float64, 0, 10)
	first := Downsample(dst, []float64{1, 2}, 10)
	second := Downsample(first, []float64{3, 4, 5}, 10)

	assert.Equal(t, []float64{3, 4, 5}, second)
	assert.Equal(t, cap(dst), cap(second))
}

func TestDownsample_Empty(t *testing.T) {
	assert.Empty(t, Downsample(nil, nil, 10))
}

func TestDownsample_ZeroMax(t *testing.T) {
	src := []float64{1, 2, 3}
	assert.Equal(t, src, Downsample(nil, src, 0))
}
