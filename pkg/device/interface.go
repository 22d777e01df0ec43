package device

import "errors"

var (
	// ErrTransport marks unrecoverable serial port failures.
	ErrTransport = errors.New("transport error")
	// ErrNotConnected is returned when reading from a closed device.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("already connected")
)

// LineReader yields newline delimited records. A read that times out
// returns the partial line (possibly empty) and a nil error.
type LineReader interface {
	ReadLine() (string, error)
}

// Device defines the interface for ECG front ends (real or mocked).
type Device interface {
	LineReader
	Connect() error
	Close() error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
