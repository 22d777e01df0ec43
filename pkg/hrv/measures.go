package hrv

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/itohio/goecg/pkg/dsp"
)

// Measure is one named result.
type Measure struct {
	Name  string
	Value float64
}

// Measures keeps results in the order they were computed.
type Measures []Measure

// Set adds or replaces the named measure.
func (m *Measures) Set(name string, v float64) {
	for i := range *m {
		if (*m)[i].Name == name {
			(*m)[i].Value = v
			return
		}
	}
	*m = append(*m, Measure{Name: name, Value: v})
}

// Get returns the named measure.
func (m Measures) Get(name string) (float64, bool) {
	for _, e := range m {
		if e.Name == name {
			return e.Value, true
		}
	}
	return math.NaN(), false
}

// Undefined statistics of empty inputs are NaN.
func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

func popStd(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.PopStdDev(x, nil)
}

func median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func fraction(x []float64, above float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	n := 0
	for _, v := range x {
		if v > above {
			n++
		}
	}
	return float64(n) / float64(len(x))
}

// timeSeries adds the interval based measures.
func (m *Measures) timeSeries(rr, diff, sqdiff []float64) {
	ibi := mean(rr)
	m.Set("bpm", 60000/ibi)
	m.Set("ibi", ibi)
	m.Set("sdnn", popStd(rr))
	m.Set("sdsd", popStd(diff))
	m.Set("rmssd", math.Sqrt(mean(sqdiff)))
	m.Set("pnn20", fraction(diff, 20))
	m.Set("pnn50", fraction(diff, 50))

	med := median(rr)
	dev := make([]float64, len(rr))
	for i, v := range rr {
		dev[i] = math.Abs(v - med)
	}
	m.Set("hr_mad", median(dev))
}

// poincare adds the Poincare plot descriptors over successive unmasked intervals.
func (m *Measures) poincare(rr []float64, mask []bool) {
	var x1, x2 []float64
	for i := 0; i+1 < len(rr); i++ {
		if mask[i] || mask[i+1] {
			continue
		}
		x1 = append(x1, (rr[i]-rr[i+1])/math.Sqrt2)
		x2 = append(x2, (rr[i]+rr[i+1])/math.Sqrt2)
	}

	sd1, sd2 := popStd(x1), popStd(x2)
	m.Set("sd1", sd1)
	m.Set("sd2", sd2)
	m.Set("s", math.Pi*sd1*sd2)
	m.Set("sd1/sd2", sd1/sd2)
}

// Breathing band and the rate the interval series is interpolated to.
const (
	breathingLow  = 0.1
	breathingHigh = 0.4
	breathingFS   = 1000.0
)

// breathingRate estimates the respiratory frequency (Hz) from the modulation
// of the interval series. It returns NaN when the series is too short.
func breathingRate(rr []float64) float64 {
	if len(rr) < 4 {
		return math.NaN()
	}

	n := len(rr)
	xs := make([]float64, n)
	floats.Span(xs, 0, float64(n))

	var spline interp.NaturalCubic
	if err := spline.Fit(xs, rr); err != nil {
		return math.NaN()
	}

	samples := int(floats.Sum(rr))
	if samples < 2 {
		return math.NaN()
	}
	xnew := make([]float64, samples)
	floats.Span(xnew, 0, float64(n))
	resp := make([]float64, samples)
	for i, x := range xnew {
		resp[i] = spline.Predict(x)
	}

	resp, err := dsp.ButterFiltFilt(dsp.Bandpass, breathingLow, breathingHigh, breathingFS, resp)
	if err != nil {
		return math.NaN()
	}

	f, err := dsp.PeakFrequency(resp, breathingFS)
	if err != nil {
		return math.NaN()
	}
	return f
}
