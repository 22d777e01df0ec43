// Package hrv detects R peaks in a conditioned ECG window and derives heart
// rate and heart rate variability measures from the beat intervals.
package hrv

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/dsp"
	"github.com/itohio/goecg/pkg/logger"
	"github.com/itohio/goecg/pkg/sample"
)

var (
	// ErrAnalysis marks a window without a usable heart rate signal.
	ErrAnalysis = errors.New("analysis failed")
	// ErrNoPeaks is returned when too few beats survive detection and rejection.
	ErrNoPeaks = fmt.Errorf("%w: too few peaks", ErrAnalysis)
	// ErrBadFit is returned when no threshold yields a plausible heart rate.
	ErrBadFit = fmt.Errorf("%w: could not determine best fit for signal, check bpm range, noise and scaling", ErrAnalysis)
)

// Scaled signal range used for peak detection.
const (
	ScaleLower = 0
	ScaleUpper = 1024
)

// Options tunes Process.
type Options struct {
	WindowSize        float64 // Rolling mean window (s)
	BPMMin            float64
	BPMMax            float64
	HighPrecision     bool    // Refine peak positions by local upsampling
	HighPrecisionFS   float64 // Rate used for refinement (Hz), must exceed the signal rate
	RejectSegmentwise bool    // Reject 10 beat segments with more than 3 outliers
}

// DefaultOptions returns the options used by the acquisition pipeline.
func DefaultOptions() Options {
	return OptionsFrom(config.Default().Analysis)
}

// OptionsFrom maps the analysis configuration onto Options.
func OptionsFrom(cfg config.AnalysisConfig) Options {
	return Options{
		WindowSize:        cfg.WindowSize,
		BPMMin:            cfg.BPMMin,
		BPMMax:            cfg.BPMMax,
		HighPrecision:     cfg.HighPrecision,
		HighPrecisionFS:   cfg.HighPrecisionFS,
		RejectSegmentwise: cfg.RejectSegmentwise,
	}
}

// WorkingData holds the intermediate results of one analysis.
type WorkingData struct {
	Signal      []float64 // Scaled input
	Rate        float64
	RollingMean []float64
	Threshold   []float64 // Rolling mean raised by BestPercent
	BestPercent float64

	Peaks         []int     // Sample index of every detected peak
	PeakPositions []float64 // Peak positions in samples, sub-sample when refined
	PeakValues    []float64
	Accepted      []bool // Per peak, false for rejected beats

	RR               []float64 // Intervals between consecutive peaks (ms)
	RRMask           []bool    // Per interval, true when either end was rejected
	RRCorrected      []float64 // Intervals between accepted peaks (ms)
	RRDiff           []float64 // Absolute successive differences of accepted intervals
	RRSqDiff         []float64
	RejectedSegments [][2]int // Sample ranges dropped by segmentwise rejection
}

// RejectedPeaks returns the indices of peaks that failed outlier rejection.
func (wd *WorkingData) RejectedPeaks() []int {
	var out []int
	for i, ok := range wd.Accepted {
		if !ok {
			out = append(out, wd.Peaks[i])
		}
	}
	return out
}

// AcceptedPeaks returns the indices of peaks used for the measures.
func (wd *WorkingData) AcceptedPeaks() []int {
	var out []int
	for i, ok := range wd.Accepted {
		if ok {
			out = append(out, wd.Peaks[i])
		}
	}
	return out
}

// Process scales signal sampled at fs Hz, detects heart beats and computes
// the measures. fs must be the rate of signal itself.
func Process(signal []float64, fs float64, opts Options) (*WorkingData, Measures, error) {
	if len(signal) == 0 {
		return nil, nil, fmt.Errorf("%w: empty signal", ErrAnalysis)
	}
	if fs <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid sample rate %g", ErrAnalysis, fs)
	}
	if opts.HighPrecision && opts.HighPrecisionFS <= fs {
		return nil, nil, fmt.Errorf("%w: high precision rate %g Hz must exceed signal rate %g Hz", ErrAnalysis, opts.HighPrecisionFS, fs)
	}

	wd := &WorkingData{
		Signal: dsp.Scale(signal, ScaleLower, ScaleUpper),
		Rate:   fs,
	}
	wd.RollingMean = sample.RollingMean(nil, wd.Signal, int(opts.WindowSize*fs))

	if err := wd.fitPeaks(opts.BPMMin, opts.BPMMax); err != nil {
		return wd, nil, err
	}

	if opts.HighPrecision {
		if err := wd.interpolatePeaks(opts.HighPrecisionFS); err != nil {
			return wd, nil, err
		}
	}

	wd.calcRR()
	if len(wd.RR) == 0 {
		return wd, nil, fmt.Errorf("%w: %d peaks detected", ErrNoPeaks, len(wd.Peaks))
	}

	wd.checkPeaks(opts.RejectSegmentwise)
	if len(wd.RRCorrected) == 0 {
		return wd, nil, fmt.Errorf("%w: all intervals rejected", ErrNoPeaks)
	}

	var m Measures
	m.timeSeries(wd.RRCorrected, wd.RRDiff, wd.RRSqDiff)
	m.poincare(wd.RR, wd.RRMask)
	m.Set("breathingrate", breathingRate(wd.RRCorrected))

	return wd, m, nil
}

// Analyzer runs Process with fixed options and logs each run.
type Analyzer struct {
	opts Options
	log  *zap.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts Options, log *zap.Logger) *Analyzer {
	return &Analyzer{opts: opts, log: logger.OrNop(log)}
}

// Analyze processes signal sampled at fs Hz.
func (a *Analyzer) Analyze(signal []float64, fs float64) (*WorkingData, Measures, error) {
	start := time.Now()
	wd, m, err := Process(signal, fs, a.opts)
	if err != nil {
		return wd, nil, err
	}

	bpm, _ := m.Get("bpm")
	a.log.Debug("analyzed",
		zap.Int("samples", len(signal)),
		zap.Float64("rate", fs),
		zap.Int("peaks", len(wd.Peaks)),
		zap.Int("rejected", len(wd.RejectedPeaks())),
		zap.Float64("best_percent", wd.BestPercent),
		zap.Float64("bpm", bpm),
		zap.Duration("duration", time.Since(start)),
	)
	if math.IsNaN(bpm) {
		a.log.Warn("bpm is not a number")
	}
	return wd, m, nil
}
