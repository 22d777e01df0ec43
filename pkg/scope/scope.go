package scope

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goecg/pkg/hrv"
	"github.com/itohio/goecg/pkg/pipeline"
	"github.com/itohio/goecg/pkg/sample"
)

// marker is a peak position in seconds and scaled signal units.
type marker struct {
	x, y float64
}

// view is everything the renderer draws, already decimated.
type view struct {
	raw      []float64 // ADC counts
	rawMin   float64
	rawMax   float64
	signal   []float64
	rolling  []float64
	duration float64 // Seconds covered by signal
	accepted []marker
	rejected []marker
	bpm      float64
	status   string
	failed   bool
	yMin     float64
	yMax     float64
}

// ScopeWidget is a Fyne widget showing the raw counts of the last window above
// the analyzed signal with its rolling mean, peak markers and heart rate.
type ScopeWidget struct {
	widget.BaseWidget

	mu   sync.RWMutex
	view view

	maxDisplayPoints int
	minDuration      float64
}

// New creates a ScopeWidget. window is the minimum time span shown in seconds.
func New(window float64) *ScopeWidget {
	s := &ScopeWidget{
		view:             view{bpm: math.NaN(), rawMax: 1, yMax: 1, duration: window, status: "waiting for data"},
		maxDisplayPoints: 1000,
		minDuration:      window,
	}
	s.ExtendBaseWidget(s)
	return s
}

// UpdateData replaces the displayed window. Call it on the Fyne goroutine.
func (s *ScopeWidget) UpdateData(raw []float64, wd *hrv.WorkingData, bpm float64, cycle int) {
	s.mu.Lock()
	s.view = buildView(s.view, raw, wd, s.maxDisplayPoints, s.minDuration)
	s.view.bpm = bpm
	s.view.failed = false
	s.view.status = fmt.Sprintf("cycle %d", cycle)
	s.mu.Unlock()

	s.Refresh()
}

// SetError keeps the last analyzed window on screen and shows err as the
// status. A non-empty raw replaces the raw counts panel.
func (s *ScopeWidget) SetError(cycle int, err error, raw []float64) {
	s.mu.Lock()
	if len(raw) > 0 {
		s.view.raw = sample.Downsample(s.view.raw, raw, s.maxDisplayPoints)
		s.view.rawMin, s.view.rawMax = valueRange(s.view.raw)
	}
	s.view.failed = true
	s.view.status = fmt.Sprintf("cycle %d: %v", cycle, err)
	s.mu.Unlock()

	s.Refresh()
}

// Observe schedules a display update for res. It matches pipeline.Driver.OnCycle
// and may be called from any goroutine.
func (s *ScopeWidget) Observe(res pipeline.Result) {
	fyne.Do(func() {
		if res.Err != nil || res.Working == nil {
			s.SetError(res.Cycle, res.Err, res.Raw)
			return
		}
		s.UpdateData(res.Raw, res.Working, res.BPM(), res.Cycle)
	})
}

// buildView decimates raw and wd for display, reusing the buffers of prev.
func buildView(prev view, raw []float64, wd *hrv.WorkingData, maxPoints int, minDuration float64) view {
	v := view{
		raw:      sample.Downsample(prev.raw, raw, maxPoints),
		signal:   prev.signal,
		rolling:  prev.rolling,
		accepted: prev.accepted[:0],
		rejected: prev.rejected[:0],
		duration: minDuration,
	}
	v.rawMin, v.rawMax = valueRange(v.raw)
	v.yMin, v.yMax = 0, 1
	if wd == nil || len(wd.Signal) == 0 || wd.Rate <= 0 {
		v.signal = v.signal[:0]
		v.rolling = v.rolling[:0]
		return v
	}

	v.signal = sample.Downsample(v.signal, wd.Signal, maxPoints)
	v.rolling = sample.Downsample(v.rolling, wd.RollingMean, maxPoints)
	if d := float64(len(wd.Signal)) / wd.Rate; d > v.duration {
		v.duration = d
	}

	for _, p := range wd.AcceptedPeaks() {
		v.accepted = append(v.accepted, marker{x: float64(p) / wd.Rate, y: wd.Signal[p]})
	}
	for _, p := range wd.RejectedPeaks() {
		v.rejected = append(v.rejected, marker{x: float64(p) / wd.Rate, y: wd.Signal[p]})
	}

	v.yMin, v.yMax = valueRange(v.signal)
	return v
}

// valueRange returns the range of ys with a 10% margin, or [0, 1] for no data.
func valueRange(ys []float64) (lo, hi float64) {
	if len(ys) == 0 {
		return 0, 1
	}
	lo, hi = ys[0], ys[0]
	for _, y := range ys {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return lo - span*0.1, hi + span*0.1
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		grid:    grid,
		objects: []fyne.CanvasObject{grid},
	}
}
