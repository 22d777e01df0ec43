package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/goecg/pkg/config"
)

// Mock simulates the ECG receiver for testing and development. It emits
// "<label>:<counts>" records from an ECGSim.
type Mock struct {
	cfg *config.MockConfig
	dt  float64

	mu        sync.Mutex
	sim       *ECGSim
	connected bool
	closes    int
	lines     int
	next      time.Time
	corrupt   map[int]string
	onRead    func(n int)
}

// NewMock creates a new mocked device sampling every dt seconds.
func NewMock(cfg *config.MockConfig, dt float64) *Mock {
	if cfg == nil {
		def := config.Default()
		cfg = &def.Mock
	}
	if dt <= 0 {
		dt = cfg.Interval.Seconds()
	}

	return &Mock{
		cfg:     cfg,
		dt:      dt,
		corrupt: make(map[int]string),
	}
}

// Connect simulates connecting to the device. The waveform restarts on every connect.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	m.sim = NewECGSim(m.dt, m.cfg.HeartRate, m.cfg.Noise, m.cfg.Wander, 1)
	m.connected = true
	m.lines = 0
	m.next = time.Now()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.connected = false
	m.closes++

	return nil
}

// Closes returns how many times the connected device was released.
func (m *Mock) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Corrupt replaces the n-th emitted line (1-based, counted since Connect) with line.
// An empty line simulates a read timeout.
func (m *Mock) Corrupt(n int, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrupt[n] = line
}

// OnRead registers a hook called with the line number after every read.
func (m *Mock) OnRead(fn func(n int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRead = fn
}

// ReadLine returns the next simulated record.
func (m *Mock) ReadLine() (string, error) {
	m.mu.Lock()

	if !m.connected {
		m.mu.Unlock()
		return "", ErrNotConnected
	}

	var wait time.Duration
	if m.cfg.Pace {
		m.next = m.next.Add(m.cfg.Interval)
		wait = time.Until(m.next)
	}

	m.lines++
	n := m.lines
	line := m.formatSample(m.sim.Next())
	if c, ok := m.corrupt[n]; ok {
		line = c
	}
	hook := m.onRead
	m.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
	if hook != nil {
		hook(n)
	}

	return line, nil
}

// formatSample converts a waveform value to a record with 12-bit ADC counts.
func (m *Mock) formatSample(v float32) string {
	counts := math.Round(m.cfg.Offset + m.cfg.Gain*float64(v))
	if counts < 0 {
		counts = 0
	} else if counts > 4095 {
		counts = 4095
	}
	return fmt.Sprintf("%s:%d", m.cfg.Label, int(counts))
}
