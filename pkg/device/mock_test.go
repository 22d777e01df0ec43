package device

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/itohio/goecg/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMock(t *testing.T) {
	cfg := &config.MockConfig{
		HeartRate: 60,
		Noise:     0.01,
		Offset:    2000,
		Gain:      500,
		Label:     "A0",
		Interval:  10 * time.Millisecond,
	}

	dev := NewMock(cfg, 0.01)
	assert.NotNil(t, dev)
	assert.Equal(t, cfg, dev.cfg)
	assert.Equal(t, 0.01, dev.dt)
	assert.False(t, dev.IsConnected())
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil, 0)
	assert.NotNil(t, dev)
	assert.Equal(t, float64(72), dev.cfg.HeartRate)
	assert.Equal(t, "ECG", dev.cfg.Label)
	assert.InDelta(t, 0.0107, dev.dt, 1e-9)
}

func TestMock_ReadLine_Format(t *testing.T) {
	dev := NewMock(nil, 0.0107)
	require.NoError(t, dev.Connect())

	for i := 0; i < 200; i++ {
		line, err := dev.ReadLine()
		require.NoError(t, err)

		label, value, ok := strings.Cut(line, ":")
		require.True(t, ok, "line %q has no colon", line)
		assert.Equal(t, "ECG", label)

		counts, err := strconv.Atoi(value)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, counts, 0)
		assert.LessOrEqual(t, counts, 4095)
	}
}

func TestMock_Deterministic(t *testing.T) {
	read := func() []string {
		dev := NewMock(nil, 0.0107)
		require.NoError(t, dev.Connect())
		defer dev.Close()

		lines := make([]string, 50)
		for i := range lines {
			line, err := dev.ReadLine()
			require.NoError(t, err)
			lines[i] = line
		}
		return lines
	}

	assert.Equal(t, read(), read())
}

func TestMock_Corrupt(t *testing.T) {
	dev := NewMock(nil, 0.0107)
	dev.Corrupt(2, "garbage")
	dev.Corrupt(3, "")
	require.NoError(t, dev.Connect())

	first, err := dev.ReadLine()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "ECG:"))

	second, err := dev.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "garbage", second)

	third, err := dev.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "", third)
}

func TestMock_OnRead(t *testing.T) {
	dev := NewMock(nil, 0.0107)
	var seen []int
	dev.OnRead(func(n int) { seen = append(seen, n) })
	require.NoError(t, dev.Connect())

	for i := 0; i < 3; i++ {
		_, err := dev.ReadLine()
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestMock_ReadLine_NotConnected(t *testing.T) {
	dev := NewMock(nil, 0)
	_, err := dev.ReadLine()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMock_Connect_AlreadyConnected(t *testing.T) {
	dev := NewMock(nil, 0)

	require.NoError(t, dev.Connect())
	assert.ErrorIs(t, dev.Connect(), ErrAlreadyConnected)
}

func TestMock_Close_NotConnected(t *testing.T) {
	dev := NewMock(nil, 0)

	assert.NoError(t, dev.Close())
	assert.Equal(t, 0, dev.Closes())
}

func TestMock_FormatSample_Clamping(t *testing.T) {
	dev := NewMock(nil, 0)

	testCases := []struct {
		name string
		v    float32
		want string
	}{
		{"zero", 0, "ECG:2048"},
		{"r peak", 1, "ECG:2848"},
		{"negative", -1, "ECG:1248"},
		{"clamped high", 5, "ECG:4095"},
		{"clamped low", -5, "ECG:0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dev.formatSample(tc.v))
		})
	}
}

func TestECGSim_Period(t *testing.T) {
	sim := NewECGSim(0.001, 75, 0, 0, 1)
	assert.InDelta(t, 0.8, sim.Period(), 1e-6)

	// R peaks land one period apart
	var peaks []int
	prev, cur := sim.Next(), sim.Next()
	for i := 2; i < 3000; i++ {
		next := sim.Next()
		if cur > prev && cur >= next && cur > 0.5 {
			peaks = append(peaks, i-1)
		}
		prev, cur = cur, next
	}

	require.GreaterOrEqual(t, len(peaks), 3)
	for i := 1; i < len(peaks); i++ {
		assert.InDelta(t, 800, peaks[i]-peaks[i-1], 2)
	}
}
