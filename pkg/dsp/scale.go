package dsp

import "gonum.org/v1/gonum/floats"

// Scale linearly maps x onto [lower, upper]. A flat signal maps to lower.
func Scale(x []float64, lower, upper float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}

	lo, hi := floats.Min(x), floats.Max(x)
	span := hi - lo
	if span == 0 {
		for i := range out {
			out[i] = lower
		}
		return out
	}

	k := (upper - lower) / span
	for i, v := range x {
		out[i] = (v-lo)*k + lower
	}
	return out
}
