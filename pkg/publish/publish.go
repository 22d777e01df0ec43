// Package publish sends per-cycle results to NATS.
package publish

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/logger"
	"github.com/itohio/goecg/pkg/pipeline"
)

// Conn is the subset of *nats.Conn used by Publisher.
type Conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

var _ Conn = (*nats.Conn)(nil)

// Connect dials url and keeps reconnecting forever.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("goecg"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// Message is the JSON payload published after each successful cycle.
// Measures that are not a number are published as null.
type Message struct {
	Run      string              `json:"run"`
	Cycle    int                 `json:"cycle"`
	Ts       int64               `json:"ts"`
	Rate     float64             `json:"rate"`
	Measures map[string]*float64 `json:"measures"`
}

// Publisher encodes results onto the configured subjects.
type Publisher struct {
	nc          Conn
	subject     string
	waveSubject string
	log         *zap.Logger
}

// New creates a Publisher on an established connection.
func New(nc Conn, cfg config.PublishConfig, log *zap.Logger) *Publisher {
	return &Publisher{
		nc:          nc,
		subject:     cfg.Subject,
		waveSubject: cfg.WaveSubject,
		log:         logger.OrNop(log),
	}
}

// Publish sends the measures of res and, when enabled, its conditioned signal.
// Failed cycles are skipped.
func (p *Publisher) Publish(res pipeline.Result) error {
	if res.Err != nil {
		return nil
	}

	msg := NewMessage(res)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("publish: encode: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}

	if p.waveSubject != "" && res.Conditioned != nil {
		if err := p.nc.Publish(p.waveSubject, EncodeWave(res.Conditioned.Signal)); err != nil {
			return fmt.Errorf("publish %s: %w", p.waveSubject, err)
		}
	}

	p.log.Debug("published", zap.String("subject", p.subject), zap.Int("cycle", res.Cycle))
	return nil
}

// Observe publishes res and logs failures. It matches pipeline.Driver.OnCycle.
func (p *Publisher) Observe(res pipeline.Result) {
	if err := p.Publish(res); err != nil {
		p.log.Warn("publish failed", zap.Error(err))
	}
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

// NewMessage converts res into its wire form.
func NewMessage(res pipeline.Result) Message {
	msg := Message{
		Run:      res.Run,
		Cycle:    res.Cycle,
		Ts:       res.Time.UnixMilli(),
		Measures: make(map[string]*float64, len(res.Measures)),
	}
	if res.Conditioned != nil {
		msg.Rate = res.Conditioned.Rate
	}
	for _, m := range res.Measures {
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			msg.Measures[m.Name] = nil
			continue
		}
		v := m.Value
		msg.Measures[m.Name] = &v
	}
	return msg
}

// EncodeWave packs x as little endian float32 values.
func EncodeWave(x []float64) []byte {
	buf := make([]byte, 4*len(x))
	for i, v := range x {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}
