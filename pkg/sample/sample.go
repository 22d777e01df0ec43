package sample

// Buffer holds one acquisition cycle worth of samples. Its capacity is fixed
// at construction and never re-estimated from the data.
type Buffer struct {
	data []float64
	n    int
}

// NewBuffer creates an empty buffer for exactly n samples.
func NewBuffer(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{data: make([]float64, n)}
}

// Append stores v and reports whether it fit. A full buffer rejects further values.
func (b *Buffer) Append(v float64) bool {
	if b.n >= len(b.data) {
		return false
	}
	b.data[b.n] = v
	b.n++
	return true
}

// Full reports whether every slot has been written.
func (b *Buffer) Full() bool {
	return b.n == len(b.data)
}

// Len returns the number of samples written so far.
func (b *Buffer) Len() int {
	return b.n
}

// Cap returns the fixed buffer length.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Values returns a copy of the samples written so far.
func (b *Buffer) Values() []float64 {
	out := make([]float64, b.n)
	copy(out, b.data[:b.n])
	return out
}

// Reset discards all samples, keeping the capacity.
func (b *Buffer) Reset() {
	b.n = 0
}
