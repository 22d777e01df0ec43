package scope

import (
	"image/color"
	"math"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	colorGrid     = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	colorAxisText = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	colorRaw      = color.RGBA{R: 220, G: 220, B: 80, A: 255}
	colorSignal   = color.RGBA{R: 80, G: 220, B: 120, A: 255}
	colorRolling  = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	colorAccepted = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	colorRejected = color.RGBA{R: 230, G: 50, B: 50, A: 255}
	colorLabel    = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	grid    *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// plotArea maps seconds and signal units onto widget coordinates.
type plotArea struct {
	x, y, w, h float32
	yMin, yMax float64
	duration   float64
}

func (a plotArea) pos(t, v float64) fyne.Position {
	x := a.x + float32(t/a.duration)*a.w
	y := a.y + a.h - float32((v-a.yMin)/(a.yMax-a.yMin))*a.h
	return fyne.NewPos(x, y)
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds all canvas objects from the current view.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	v := r.scope.view
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	const (
		marginLeft   = 60
		marginRight  = 20
		marginTop    = 30
		marginBottom = 40
		panelGap     = 30
		rawShare     = 0.3
	)
	w := size.Width - marginLeft - marginRight
	h := size.Height - marginTop - marginBottom - panelGap
	rawH := h * rawShare

	raw := plotArea{
		x:        marginLeft,
		y:        marginTop,
		w:        w,
		h:        rawH,
		yMin:     v.rawMin,
		yMax:     v.rawMax,
		duration: v.duration,
	}
	a := plotArea{
		x:        marginLeft,
		y:        marginTop + rawH + panelGap,
		w:        w,
		h:        h - rawH,
		yMin:     v.yMin,
		yMax:     v.yMax,
		duration: v.duration,
	}

	r.drawGrid(raw, 4)
	r.drawTrace(raw, v.raw, v.duration, colorRaw, 1)
	title := r.text("ADC counts", colorAxisText, 10)
	title.Move(fyne.NewPos(raw.x+4, raw.y+2))

	r.drawGrid(a, 8)
	r.drawTrace(a, v.rolling, v.duration, colorRolling, 1)
	r.drawTrace(a, v.signal, v.duration, colorSignal, 1.5)
	r.drawMarkers(a, v.accepted, colorAccepted)
	r.drawMarkers(a, v.rejected, colorRejected)
	r.drawStatus(a, v)
}

// drawGrid draws the oscilloscope-style grid with value and time labels.
func (r *scopeRenderer) drawGrid(a plotArea, numHLines int) {
	const numVLines = 10

	for i := range numHLines + 1 {
		y := a.y + float32(i)*a.h/float32(numHLines)
		r.line(fyne.NewPos(a.x, y), fyne.NewPos(a.x+a.w, y), colorGrid, 1)

		value := a.yMax - float64(i)*(a.yMax-a.yMin)/float64(numHLines)
		text := r.text(strconv.FormatFloat(value, 'f', 0, 64), colorAxisText, 10)
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(a.x-5, y-6))
	}

	for i := range numVLines + 1 {
		x := a.x + float32(i)*a.w/numVLines
		r.line(fyne.NewPos(x, a.y), fyne.NewPos(x, a.y+a.h), colorGrid, 1)

		t := float64(i) * a.duration / numVLines
		text := r.text(formatSeconds(t), colorAxisText, 10)
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, a.y+a.h+5))
	}
}

// drawTrace draws ys evenly spread over span seconds.
func (r *scopeRenderer) drawTrace(a plotArea, ys []float64, span float64, c color.Color, width float32) {
	if len(ys) < 2 {
		return
	}
	dt := span / float64(len(ys))
	prev := a.pos(0, ys[0])
	for i := 1; i < len(ys); i++ {
		cur := a.pos(float64(i)*dt, ys[i])
		r.line(prev, cur, c, width)
		prev = cur
	}
}

func (r *scopeRenderer) drawMarkers(a plotArea, markers []marker, c color.Color) {
	const radius = 4
	for _, m := range markers {
		p := a.pos(m.x, m.y)
		circle := canvas.NewCircle(color.Transparent)
		circle.StrokeColor = c
		circle.StrokeWidth = 2
		circle.Move(fyne.NewPos(p.X-radius, p.Y-radius))
		circle.Resize(fyne.NewSize(2*radius, 2*radius))
		r.objects = append(r.objects, circle)
	}
}

// drawStatus draws the heart rate and the last cycle status above the plot.
func (r *scopeRenderer) drawStatus(a plotArea, v view) {
	bpm := "BPM: --"
	if !math.IsNaN(v.bpm) {
		bpm = "BPM: " + strconv.FormatFloat(v.bpm, 'f', 1, 64)
	}
	label := r.text(bpm, colorAccepted, 14)
	label.TextStyle = fyne.TextStyle{Bold: true}
	label.Move(fyne.NewPos(a.x+10, 6))

	c := colorLabel
	if v.failed {
		c = colorRejected
	}
	status := r.text(v.status, c, 11)
	status.Alignment = fyne.TextAlignTrailing
	status.Move(fyne.NewPos(a.x+a.w, 8))
}

func (r *scopeRenderer) line(p1, p2 fyne.Position, c color.Color, width float32) {
	l := canvas.NewLine(c)
	l.Position1 = p1
	l.Position2 = p2
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *scopeRenderer) text(s string, c color.Color, size float32) *canvas.Text {
	t := canvas.NewText(s, c)
	t.TextSize = size
	r.objects = append(r.objects, t)
	return t
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatSeconds(s float64) string {
	if s < 1 {
		return strconv.FormatFloat(s, 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(s, 'f', 1, 64) + "s"
}
