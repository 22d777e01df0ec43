// Package acquire fills one sample buffer from a line oriented ECG source.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/device"
	"github.com/itohio/goecg/pkg/logger"
	"github.com/itohio/goecg/pkg/sample"
)

// ErrMalformedRecord is returned for a line that is empty, has no colon or
// carries a value that is not a number.
var ErrMalformedRecord = errors.New("malformed record")

// RecordError locates a malformed record within a cycle.
type RecordError struct {
	Line   int // 1-based line number within the cycle
	Text   string
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("line %d %q: %s", e.Line, e.Text, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return ErrMalformedRecord.Error() + ": " + msg
}

func (e *RecordError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRecord, e.Err}
	}
	return []error{ErrMalformedRecord}
}

// Record is one parsed "label:value" line.
type Record struct {
	Label string
	Value float64
}

// ParseRecord parses the field following the first colon as a float. Any
// further colon separated fields are ignored.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, &RecordError{Text: line, Reason: "empty line (read timeout)"}
	}

	label, value, ok := strings.Cut(line, ":")
	if !ok {
		return Record{}, &RecordError{Text: line, Reason: "missing ':' separator"}
	}

	value, _, _ = strings.Cut(value, ":")
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return Record{}, &RecordError{Text: line, Reason: "invalid value", Err: err}
	}

	return Record{Label: strings.TrimSpace(label), Value: v}, nil
}

// Stats counts what a single Acquire call consumed.
type Stats struct {
	Records   int
	Malformed int
}

// Acquirer reads fixed size cycles from a LineReader. The buffer is reused
// between cycles, so Acquire must not be called concurrently.
type Acquirer struct {
	src device.LineReader
	buf *sample.Buffer
	log *zap.Logger
}

// New creates an Acquirer reading n records per cycle.
func New(src device.LineReader, n int, log *zap.Logger) *Acquirer {
	return &Acquirer{src: src, buf: sample.NewBuffer(n), log: logger.OrNop(log)}
}

// Acquire reads exactly n records and returns their values in arrival order.
// Any malformed record fails the whole cycle and no partial buffer is returned.
func (a *Acquirer) Acquire(ctx context.Context) ([]float64, Stats, error) {
	var stats Stats
	buf := a.buf
	if buf.Cap() < 1 {
		return nil, stats, fmt.Errorf("acquire: buffer length %d must be positive", buf.Cap())
	}

	buf.Reset()
	for !buf.Full() {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		line, err := a.src.ReadLine()
		if err != nil {
			return nil, stats, fmt.Errorf("acquire: read line %d: %w", buf.Len()+1, err)
		}

		rec, err := ParseRecord(line)
		if err != nil {
			stats.Malformed++
			var re *RecordError
			if errors.As(err, &re) {
				re.Line = buf.Len() + 1
			}
			a.log.Warn("malformed record", zap.Int("line", buf.Len()+1), zap.String("text", line))
			return nil, stats, err
		}

		buf.Append(rec.Value)
		stats.Records++
	}

	return buf.Values(), stats, nil
}
