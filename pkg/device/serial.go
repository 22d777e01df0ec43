package device

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/logger"
)

const (
	// DefaultBaudRate is the nRF52 receiver UART rate.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds a single line read.
	DefaultReadTimeout = time.Second

	readChunk = 64
	// maxLineLen bounds a line that never sees its newline.
	maxLineLen = 256
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the ECG receiver MCU.
type Serial struct {
	port        string
	baudRate    int
	readTimeout time.Duration
	log         *zap.Logger

	open func(name string, mode *serial.Mode) (serial.Port, error)

	mu        sync.Mutex
	conn      serial.Port
	pending   []byte
	buf       []byte
	connected bool
	closes    int
}

// New creates a new Serial instance with the specified port, baud rate and read timeout.
func New(port string, baudRate int, readTimeout time.Duration, log *zap.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout == 0 {
		readTimeout = DefaultReadTimeout
	}

	return &Serial{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
		log:         logger.OrNop(log),
		open:        serial.Open,
		buf:         make([]byte, readChunk),
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := d.open(d.port, mode)
	if err != nil {
		return fmt.Errorf("%w: failed to open serial port %s: %w", ErrTransport, d.port, err)
	}

	if err := port.SetReadTimeout(d.readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("%w: failed to set read timeout on %s: %w", ErrTransport, d.port, err)
	}

	d.conn = port
	d.pending = d.pending[:0]
	d.connected = true
	d.log.Info("serial port opened", zap.String("port", d.port), zap.Int("baud", d.baudRate))

	return nil
}

// Close closes the serial port. Closing a closed device is a no-op.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	var err error
	if d.conn != nil {
		if cerr := d.conn.Close(); cerr != nil {
			err = fmt.Errorf("%w: failed to close %s: %w", ErrTransport, d.port, cerr)
		}
		d.conn = nil
	}

	d.connected = false
	d.closes++
	d.log.Info("serial port closed", zap.String("port", d.port))

	return err
}

// Closes returns how many times an open port was released.
func (d *Serial) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// ReadLine reads up to the next newline. The read timeout bounds the whole
// call: once it elapses, or maxLineLen bytes arrive without a newline, the
// bytes received so far are returned, which is an empty string if nothing
// arrived.
func (d *Serial) ReadLine() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return "", ErrNotConnected
	}

	deadline := time.Now().Add(d.readTimeout)
	for {
		if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
			line := string(d.pending[:i])
			d.pending = append(d.pending[:0], d.pending[i+1:]...)
			return strings.TrimRight(line, "\r"), nil
		}

		if len(d.pending) >= maxLineLen {
			d.log.Warn("line too long", zap.String("port", d.port), zap.Int("bytes", len(d.pending)))
			return d.flush(), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return d.flush(), nil
		}
		if err := d.conn.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("%w: set read timeout on %s: %w", ErrTransport, d.port, err)
		}

		n, err := d.conn.Read(d.buf)
		if err != nil {
			return "", fmt.Errorf("%w: read from %s: %w", ErrTransport, d.port, err)
		}
		if n == 0 {
			// Read timed out
			return d.flush(), nil
		}

		d.pending = append(d.pending, d.buf[:n]...)
	}
}

// flush returns and discards the partial line.
func (d *Serial) flush() string {
	line := string(d.pending)
	d.pending = d.pending[:0]
	return strings.TrimRight(line, "\r")
}
