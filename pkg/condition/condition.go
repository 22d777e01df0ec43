// Package condition prepares a raw ECG window for peak detection.
package condition

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/dsp"
	"github.com/itohio/goecg/pkg/logger"
)

// ErrConditioning marks a failure of the filter or resampling chain.
var ErrConditioning = errors.New("conditioning failed")

// Conditioned is the output of one conditioning pass.
type Conditioned struct {
	Signal   []float64 // Resampled signal
	Filtered []float64 // Filtered signal at the acquisition rate
	Rate     float64   // Sample rate of Signal (Hz)
	Upsample int
}

// Conditioner runs wander removal, the T-wave notch, an optional Butterworth
// stage and resampling, always in that order.
type Conditioner struct {
	cfg      config.ConditioningConfig
	upsample int
	log      *zap.Logger
}

// New creates a Conditioner. An upsample factor below 1 is treated as 1.
func New(cfg config.ConditioningConfig, upsample int, log *zap.Logger) *Conditioner {
	if upsample < 1 {
		upsample = 1
	}
	return &Conditioner{cfg: cfg, upsample: upsample, log: logger.OrNop(log)}
}

// Condition filters raw sampled at rate Hz and resamples it. The notch stages
// use rate; only the final resampling changes it.
func (c *Conditioner) Condition(raw []float64, rate float64) (*Conditioned, error) {
	start := time.Now()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty signal", ErrConditioning)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %g", ErrConditioning, rate)
	}

	x := raw
	var err error

	if !c.cfg.BypassBaseline {
		if x, err = notch(x, c.cfg.BaselineCutoff, c.cfg.NotchQ, rate); err != nil {
			return nil, fmt.Errorf("%w: baseline wander removal: %w", ErrConditioning, err)
		}
	}

	if !c.cfg.BypassNotch {
		if x, err = notch(x, c.cfg.NotchCutoff, c.cfg.NotchQ, rate); err != nil {
			return nil, fmt.Errorf("%w: notch filter: %w", ErrConditioning, err)
		}
	}

	if f := c.cfg.Filter; f.Type != "" && f.Type != config.FilterNone {
		if x, err = dsp.ButterFiltFilt(dsp.FilterKind(f.Type), f.CutoffLow, f.CutoffHigh, rate, x); err != nil {
			return nil, fmt.Errorf("%w: %s filter: %w", ErrConditioning, f.Type, err)
		}
	}

	filtered := make([]float64, len(x))
	copy(filtered, x)

	want := len(raw) * c.upsample
	signal := filtered
	if c.upsample != 1 {
		if signal, err = dsp.Resample(x, want); err != nil {
			return nil, fmt.Errorf("%w: resample: %w", ErrConditioning, err)
		}
	}
	if len(signal) != want {
		return nil, fmt.Errorf("%w: resampled length %d, want %d", ErrConditioning, len(signal), want)
	}

	c.log.Debug("conditioned",
		zap.Int("samples", len(raw)),
		zap.Int("resampled", len(signal)),
		zap.Float64("rate", rate*float64(c.upsample)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Conditioned{
		Signal:   signal,
		Filtered: filtered,
		Rate:     rate * float64(c.upsample),
		Upsample: c.upsample,
	}, nil
}

func notch(x []float64, f0, q, rate float64) ([]float64, error) {
	b, a, err := dsp.NotchCoefficients(f0, q, rate)
	if err != nil {
		return nil, err
	}
	return dsp.FiltFilt(b, a, x)
}
