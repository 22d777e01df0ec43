package device

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort replays chunks; an empty chunk simulates a read timeout.
type fakePort struct {
	chunks  [][]byte
	readErr error
	timeout time.Duration
	closed  int
}

func (p *fakePort) SetMode(mode *serial.Mode) error { return nil }
func (p *fakePort) Write(b []byte) (int, error)     { return len(b), nil }
func (p *fakePort) Drain() error                    { return nil }
func (p *fakePort) ResetInputBuffer() error         { return nil }
func (p *fakePort) ResetOutputBuffer() error        { return nil }
func (p *fakePort) SetDTR(dtr bool) error           { return nil }
func (p *fakePort) SetRTS(rts bool) error           { return nil }
func (p *fakePort) Break(time.Duration) error       { return nil }
func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}
func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}
func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, nil
	}
	chunk := p.chunks[0]
	n := copy(b, chunk)
	if n < len(chunk) {
		p.chunks[0] = chunk[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func newTestSerial(t *testing.T, port serial.Port) *Serial {
	t.Helper()
	dev := New("COM6", 115200, time.Second, nil)
	dev.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		assert.Equal(t, "COM6", name)
		assert.Equal(t, 115200, mode.BaudRate)
		return port, nil
	}
	require.NoError(t, dev.Connect())
	return dev
}

func TestNew(t *testing.T) {
	dev := New("COM6", 115200, 500*time.Millisecond, nil)
	assert.NotNil(t, dev)
	assert.Equal(t, "COM6", dev.port)
	assert.Equal(t, 115200, dev.baudRate)
	assert.Equal(t, 500*time.Millisecond, dev.readTimeout)
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("COM6", 0, 0, nil)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultReadTimeout, dev.readTimeout)
}

func TestSerial_ReadLine(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   []string
	}{
		{
			name:   "single chunk",
			chunks: [][]byte{[]byte("ECG:512\n")},
			want:   []string{"ECG:512"},
		},
		{
			name:   "split across reads",
			chunks: [][]byte{[]byte("EC"), []byte("G:5"), []byte("12\nECG:6"), []byte("00\n")},
			want:   []string{"ECG:512", "ECG:600"},
		},
		{
			name:   "CRLF terminated",
			chunks: [][]byte{[]byte("ECG:1\r\nECG:2\r\n")},
			want:   []string{"ECG:1", "ECG:2"},
		},
		{
			name:   "timeout with nothing received",
			chunks: nil,
			want:   []string{""},
		},
		{
			name:   "timeout mid line returns partial",
			chunks: [][]byte{[]byte("ECG:4")},
			want:   []string{"ECG:4", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{chunks: tt.chunks}
			dev := newTestSerial(t, port)
			assert.Equal(t, time.Second, port.timeout)

			for _, want := range tt.want {
				got, err := dev.ReadLine()
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestSerial_ReadLine_TransportError(t *testing.T) {
	port := &fakePort{readErr: errors.New("device unplugged")}
	dev := newTestSerial(t, port)

	_, err := dev.ReadLine()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestSerial_ReadLine_NotConnected(t *testing.T) {
	dev := New("COM6", 0, 0, nil)
	_, err := dev.ReadLine()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSerial_Connect_OpenFails(t *testing.T) {
	dev := New("COM99", 0, 0, nil)
	dev.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such port")
	}

	err := dev.Connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, dev.IsConnected())
}

func TestSerial_Connect_AlreadyConnected(t *testing.T) {
	dev := newTestSerial(t, &fakePort{})
	assert.ErrorIs(t, dev.Connect(), ErrAlreadyConnected)
}

func TestSerial_Close_ReleasesOnce(t *testing.T) {
	port := &fakePort{}
	dev := newTestSerial(t, port)

	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	assert.Equal(t, 1, port.closed)
	assert.Equal(t, 1, dev.Closes())
	assert.False(t, dev.IsConnected())
}

// streamPort returns one byte per read every delay and never a newline.
type streamPort struct {
	fakePort
	delay time.Duration
	chunk int
}

func (p *streamPort) Read(b []byte) (int, error) {
	time.Sleep(p.delay)
	n := min(p.chunk, len(b))
	for i := range n {
		b[i] = 'x'
	}
	return n, nil
}

func readLineWithin(t *testing.T, dev *Serial, limit time.Duration) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := dev.ReadLine()
		done <- result{line, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.line
	case <-time.After(limit):
		require.FailNow(t, "ReadLine did not return", "limit %v", limit)
		return ""
	}
}

func TestSerial_ReadLine_TimeoutBoundsWholeLine(t *testing.T) {
	port := &streamPort{delay: time.Millisecond, chunk: 1}
	dev := New("COM6", 115200, 50*time.Millisecond, nil)
	dev.open = func(string, *serial.Mode) (serial.Port, error) { return port, nil }
	require.NoError(t, dev.Connect())

	start := time.Now()
	line := readLineWithin(t, dev, 2*time.Second)
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, line)
	assert.Less(t, len(line), maxLineLen)
	assert.LessOrEqual(t, port.timeout, 50*time.Millisecond)
}

func TestSerial_ReadLine_CapsLineLength(t *testing.T) {
	port := &streamPort{chunk: readChunk}
	dev := newTestSerial(t, port)

	line := readLineWithin(t, dev, 2*time.Second)
	assert.GreaterOrEqual(t, len(line), maxLineLen)
	assert.Less(t, len(line), maxLineLen+readChunk)

	// the next call starts from an empty buffer
	line = readLineWithin(t, dev, 2*time.Second)
	assert.Less(t, len(line), maxLineLen+readChunk)
}
