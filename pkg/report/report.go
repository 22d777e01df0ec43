// Package report renders analysis results as plots and console lines.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/hrv"
	"github.com/itohio/goecg/pkg/logger"
)

// ErrOutput marks a failure to render or persist a report.
var ErrOutput = errors.New("output failed")

var (
	signalColor   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	meanColor     = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	acceptedColor = color.RGBA{G: 0xa0, A: 0xff}
	rejectedColor = color.RGBA{R: 0xd0, A: 0xff}
)

// Reporter builds the raw and peak detection plots for one cycle.
type Reporter struct {
	cfg config.OutputConfig
	log *zap.Logger
}

// New creates a Reporter.
func New(cfg config.OutputConfig, log *zap.Logger) *Reporter {
	return &Reporter{cfg: cfg, log: logger.OrNop(log)}
}

func (r *Reporter) title(base string) string {
	parts := []string{base}
	if r.cfg.Prefix != "" {
		parts = append(parts, r.cfg.Prefix)
	}
	if r.cfg.BPMTag != "" {
		parts = append(parts, "BPM: "+r.cfg.BPMTag)
	}
	return strings.Join(parts, ", ")
}

// RawPlot plots ADC counts against sample number.
func (r *Reporter) RawPlot(raw []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = r.title("Raw Data")
	p.X.Label.Text = "Sample #"
	p.Y.Label.Text = "ADC Counts"

	xys := make(plotter.XYs, len(raw))
	for i, v := range raw {
		xys[i].X = float64(i)
		xys[i].Y = v
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("%w: raw plot: %w", ErrOutput, err)
	}
	line.Color = signalColor
	p.Add(line)

	return p, nil
}

// PeakPlot plots the scaled signal with its rolling mean, accepted peaks and rejected peaks.
func (r *Reporter) PeakPlot(wd *hrv.WorkingData, m hrv.Measures) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = r.title("Heart Rate Signal Peak Detection")
	p.X.Label.Text = "Time (s)"
	p.Legend.Top = true

	at := func(idx []int, ys []float64) plotter.XYs {
		xys := make(plotter.XYs, len(idx))
		for i, k := range idx {
			xys[i].X = float64(k) / wd.Rate
			xys[i].Y = ys[k]
		}
		return xys
	}
	all := func(ys []float64) plotter.XYs {
		xys := make(plotter.XYs, len(ys))
		for i, v := range ys {
			xys[i].X = float64(i) / wd.Rate
			xys[i].Y = v
		}
		return xys
	}

	signal, err := plotter.NewLine(all(wd.Signal))
	if err != nil {
		return nil, fmt.Errorf("%w: peak plot signal: %w", ErrOutput, err)
	}
	signal.Color = signalColor
	p.Add(signal)
	p.Legend.Add("heart rate signal", signal)

	if len(wd.RollingMean) == len(wd.Signal) {
		mean, err := plotter.NewLine(all(wd.RollingMean))
		if err != nil {
			return nil, fmt.Errorf("%w: peak plot rolling mean: %w", ErrOutput, err)
		}
		mean.Color = meanColor
		mean.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(mean)
		p.Legend.Add("rolling mean", mean)
	}

	if accepted := wd.AcceptedPeaks(); len(accepted) > 0 {
		s, err := plotter.NewScatter(at(accepted, wd.Signal))
		if err != nil {
			return nil, fmt.Errorf("%w: peak plot peaks: %w", ErrOutput, err)
		}
		s.Shape = draw.CircleGlyph{}
		s.Color = acceptedColor
		s.Radius = vg.Points(3)
		p.Add(s)

		label := "BPM: n/a"
		if bpm, ok := m.Get("bpm"); ok && !math.IsNaN(bpm) {
			label = fmt.Sprintf("BPM: %.2f", bpm)
		}
		p.Legend.Add(label, s)
	}

	if rejected := wd.RejectedPeaks(); len(rejected) > 0 {
		s, err := plotter.NewScatter(at(rejected, wd.Signal))
		if err != nil {
			return nil, fmt.Errorf("%w: peak plot rejected peaks: %w", ErrOutput, err)
		}
		s.Shape = draw.CrossGlyph{}
		s.Color = rejectedColor
		s.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add("rejected peaks", s)
	}

	return p, nil
}

func (r *Reporter) size() (vg.Length, vg.Length) {
	w, h := r.cfg.Width, r.cfg.Height
	if w <= 0 {
		w = 12
	}
	if h <= 0 {
		h = 4
	}
	return vg.Length(w) * vg.Inch, vg.Length(h) * vg.Inch
}

// Paths returns the raw and peak plot file names, <prefix>_raw.<ext> and <prefix>_hp.<ext>.
func (r *Reporter) Paths() (raw, hp string) {
	ext := r.cfg.Format
	if ext == "" {
		ext = "png"
	}
	raw = filepath.Join(r.cfg.Path, r.cfg.Prefix+"_raw."+ext)
	hp = filepath.Join(r.cfg.Path, r.cfg.Prefix+"_hp."+ext)
	return raw, hp
}

// SaveRaw writes the raw plot, overwriting an earlier file of the same name.
// The output directory must exist.
func (r *Reporter) SaveRaw(raw []float64) (string, error) {
	path, _ := r.Paths()
	p, err := r.RawPlot(raw)
	if err != nil {
		return "", err
	}
	return path, r.save(p, path)
}

// SavePeaks writes the peak detection plot.
func (r *Reporter) SavePeaks(wd *hrv.WorkingData, m hrv.Measures) (string, error) {
	_, path := r.Paths()
	p, err := r.PeakPlot(wd, m)
	if err != nil {
		return "", err
	}
	return path, r.save(p, path)
}

func (r *Reporter) save(p *plot.Plot, path string) error {
	w, h := r.size()
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrOutput, path, err)
	}
	r.log.Info("plot saved", zap.String("file", path))
	return nil
}

// PrintMeasures writes one "name: value" line per measure in computation order.
func PrintMeasures(w io.Writer, m hrv.Measures) error {
	for _, e := range m {
		if _, err := fmt.Fprintf(w, "%s: %s\n", e.Name, formatValue(e.Value)); err != nil {
			return fmt.Errorf("%w: print measures: %w", ErrOutput, err)
		}
	}
	return nil
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%f", v)
}
