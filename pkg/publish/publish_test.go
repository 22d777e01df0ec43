package publish

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goecg/pkg/condition"
	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/hrv"
	"github.com/itohio/goecg/pkg/pipeline"
)

type msg struct {
	subject string
	data    []byte
}

type fakeConn struct {
	sent    []msg
	err     error
	drained bool
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg{subj, data})
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func testResult() pipeline.Result {
	var m hrv.Measures
	m.Set("bpm", 72.5)
	m.Set("breathingrate", math.NaN())
	return pipeline.Result{
		Run:         "run-1",
		Cycle:       3,
		Time:        time.UnixMilli(1700000000123),
		Measures:    m,
		Conditioned: &condition.Conditioned{Signal: []float64{1, -2.5, 3}, Rate: 186.9},
	}
}

func TestPublisher_Publish(t *testing.T) {
	nc := &fakeConn{}
	p := New(nc, config.PublishConfig{Subject: "ecg.measures"}, nil)

	require.NoError(t, p.Publish(testResult()))
	require.Len(t, nc.sent, 1)
	assert.Equal(t, "ecg.measures", nc.sent[0].subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(nc.sent[0].data, &got))
	assert.Equal(t, "run-1", got["run"])
	assert.Equal(t, float64(3), got["cycle"])
	assert.Equal(t, float64(1700000000123), got["ts"])
	assert.Equal(t, 186.9, got["rate"])
	assert.Equal(t, map[string]any{"bpm": 72.5, "breathingrate": nil}, got["measures"])
}

func TestPublisher_Publish_Wave(t *testing.T) {
	nc := &fakeConn{}
	p := New(nc, config.PublishConfig{Subject: "ecg.measures", WaveSubject: "ecg.wave"}, nil)

	require.NoError(t, p.Publish(testResult()))
	require.Len(t, nc.sent, 2)
	assert.Equal(t, "ecg.wave", nc.sent[1].subject)
	assert.Equal(t, []float32{1, -2.5, 3}, decodeWave(nc.sent[1].data))
}

func TestPublisher_Publish_SkipsFailedCycles(t *testing.T) {
	nc := &fakeConn{}
	p := New(nc, config.PublishConfig{Subject: "ecg.measures"}, nil)

	res := testResult()
	res.Err = errors.New("boom")
	require.NoError(t, p.Publish(res))
	assert.Empty(t, nc.sent)
}

func TestPublisher_Publish_Error(t *testing.T) {
	nc := &fakeConn{err: errors.New("connection closed")}
	p := New(nc, config.PublishConfig{Subject: "ecg.measures"}, nil)

	err := p.Publish(testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ecg.measures")

	// Observe only logs
	p.Observe(testResult())
}

func TestPublisher_Close(t *testing.T) {
	nc := &fakeConn{}
	require.NoError(t, New(nc, config.PublishConfig{}, nil).Close())
	assert.True(t, nc.drained)
}

func decodeWave(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
