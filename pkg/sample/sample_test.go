package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_Fill(t *testing.T) {
	buf := NewBuffer(3)
	assert.Equal(t, 3, buf.Cap())
	assert.Equal(t, 0, buf.Len())
	assert.False(t, buf.Full())

	assert.True(t, buf.Append(1))
	assert.True(t, buf.Append(2))
	assert.True(t, buf.Append(3))
	assert.False(t, buf.Append(4), "full buffer must reject values")

	assert.True(t, buf.Full())
	assert.Equal(t, []float64{1, 2, 3}, buf.Values())
}

func TestBuffer_ValuesIsCopy(t *testing.T) {
	buf := NewBuffer(2)
	buf.Append(1)

	vals := buf.Values()
	vals[0] = 42
	assert.Equal(t, []float64{1}, buf.Values())
}

func TestBuffer_Reset(t *testing.T) {
	buf := NewBuffer(2)
	buf.Append(1)
	buf.Append(2)
	buf.Reset()

	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 2, buf.Cap())
	assert.Empty(t, buf.Values())
	assert.True(t, buf.Append(5))
}

func TestBuffer_Negative(t *testing.T) {
	buf := NewBuffer(-1)
	assert.Equal(t, 0, buf.Cap())
	assert.True(t, buf.Full())
	assert.False(t, buf.Append(1))
}
