package sample

import "gonum.org/v1/gonum/floats"

// RollingMean computes a centred moving average with the given window length
// in samples. The half window gaps at both ends are filled with the first and
// last complete window means, so the result has the same length as data.
// Destination-based: reuses dst if it has sufficient capacity.
func RollingMean(dst []float64, data []float64, window int) []float64 {
	n := len(data)
	if cap(dst) >= n {
		dst = dst[:n]
	} else {
		dst = make([]float64, n)
	}
	if n == 0 {
		return dst
	}
	if window < 1 {
		window = 1
	}
	if window > n {
		m := floats.Sum(data) / float64(n)
		for i := range dst {
			dst[i] = m
		}
		return dst
	}

	windows := n - window + 1
	means := make([]float64, windows)
	sum := floats.Sum(data[:window])
	means[0] = sum / float64(window)
	for i := 1; i < windows; i++ {
		sum += data[i+window-1] - data[i-1]
		means[i] = sum / float64(window)
	}

	pad := (n - windows) / 2
	for i := 0; i < pad; i++ {
		dst[i] = means[0]
	}
	copy(dst[pad:], means)
	for i := pad + windows; i < n; i++ {
		dst[i] = means[windows-1]
	}

	return dst
}
