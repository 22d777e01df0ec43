// Package pipeline drives acquisition, conditioning, analysis and reporting
// cycles over one ECG device.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/acquire"
	"github.com/itohio/goecg/pkg/condition"
	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/device"
	"github.com/itohio/goecg/pkg/hrv"
	"github.com/itohio/goecg/pkg/logger"
	"github.com/itohio/goecg/pkg/report"
)

// Result describes one finished cycle, successful or not.
type Result struct {
	Run         string
	Cycle       int
	Time        time.Time
	Raw         []float64
	Conditioned *condition.Conditioned
	Working     *hrv.WorkingData
	Measures    hrv.Measures
	Files       []string
	Records     int
	Malformed   int
	Durations   map[Stage]time.Duration
	Err         error
}

// BPM returns the bpm measure or NaN.
func (r Result) BPM() float64 {
	if v, ok := r.Measures.Get("bpm"); ok {
		return v
	}
	return math.NaN()
}

// Driver runs pipeline cycles over a device it owns for the duration of a run.
type Driver struct {
	cfg *config.Config
	dev device.Device
	out io.Writer
	log *zap.Logger
	run string

	acq  *acquire.Acquirer
	cond *condition.Conditioner
	an   *hrv.Analyzer
	rep  *report.Reporter

	mu     sync.RWMutex
	state  State
	cycles int

	cbMu    sync.RWMutex
	onCycle []func(Result)
	onState []func(State)
}

// New creates a Driver. Measures are printed to out.
func New(cfg *config.Config, dev device.Device, out io.Writer, log *zap.Logger) *Driver {
	run := uuid.NewString()
	log = logger.OrNop(log).With(zap.String("run", run))
	return &Driver{
		cfg:   cfg,
		dev:   dev,
		out:   out,
		log:   log,
		run:   run,
		acq:   acquire.New(dev, cfg.BufferLen(), log),
		cond:  condition.New(cfg.Conditioning, cfg.Sampling.Upsample, log),
		an:    hrv.NewAnalyzer(hrv.OptionsFrom(cfg.Analysis), log),
		rep:   report.New(cfg.Output, log),
		state: StateIdle,
	}
}

// Run returns the run identifier.
func (d *Driver) Run() string {
	return d.run
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// OnCycle registers a callback invoked after every cycle, including failed ones.
// The callback runs on the driver goroutine and should return quickly.
func (d *Driver) OnCycle(fn func(Result)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onCycle = append(d.onCycle, fn)
}

// OnState registers a callback invoked on every state transition.
func (d *Driver) OnState(fn func(State)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onState = append(d.onState, fn)
}

// RunOnce connects, runs a single cycle that saves both plots and releases
// the device. The raw plot is saved even when a later stage fails.
func (d *Driver) RunOnce(ctx context.Context) (Result, error) {
	release, err := d.open()
	if err != nil {
		return Result{Run: d.run, Err: err}, err
	}
	defer release()

	res := d.runCycle(ctx, true)
	return res, res.Err
}

// RunContinuous connects and repeats cycles until ctx is cancelled or a cycle
// fails under the abort policy. Images are not saved. Transport failures end
// the run under either policy. Cancellation returns ctx.Err().
func (d *Driver) RunContinuous(ctx context.Context) error {
	release, err := d.open()
	if err != nil {
		return err
	}
	defer release()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := d.runCycle(ctx, false)
		if res.Err == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.cfg.Loop.OnError == config.OnErrorContinue && !fatal(res.Err) {
			d.log.Warn("cycle failed, continuing", zap.Int("cycle", res.Cycle), zap.Error(res.Err))
			continue
		}
		return res.Err
	}
}

// open connects the device and returns its release function. Release is safe
// to call more than once; the device is closed exactly once.
func (d *Driver) open() (func(), error) {
	d.setState(StateIdle)
	if err := d.dev.Connect(); err != nil {
		err = &StageError{Stage: StageConnect, Err: fmt.Errorf("connect: %w", err)}
		d.log.Error("connect failed", zap.Error(err))
		d.setState(StateClosed)
		return nil, err
	}
	d.log.Info("device connected")

	var once sync.Once
	return func() {
		once.Do(func() {
			d.setState(StateClosing)
			if err := d.dev.Close(); err != nil {
				d.log.Warn("failed to close device", zap.Error(err))
			}
			d.log.Info("device released")
			d.setState(StateClosed)
		})
	}, nil
}

func (d *Driver) runCycle(ctx context.Context, save bool) (res Result) {
	d.mu.Lock()
	d.cycles++
	n := d.cycles
	d.mu.Unlock()

	res = Result{
		Run:       d.run,
		Cycle:     n,
		Time:      time.Now(),
		Durations: make(map[Stage]time.Duration, len(Stages)),
	}
	log := d.log.With(zap.Int("cycle", n))

	defer func() {
		if res.Err != nil {
			log.Error("cycle failed", zap.Error(res.Err), zap.Strings("trace", Trace(res.Err)))
		}
		d.notify(res)
	}()

	step := func(s Stage, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.setState(s.state())
		start := time.Now()
		err := fn()
		res.Durations[s] = time.Since(start)
		log.Debug("stage done", zap.String("stage", string(s)), zap.Duration("duration", res.Durations[s]), zap.Bool("ok", err == nil))
		if err != nil {
			return &StageError{Stage: s, Cycle: n, Err: err}
		}
		return nil
	}

	if res.Err = step(StageAcquire, func() error {
		raw, stats, err := d.acq.Acquire(ctx)
		res.Records, res.Malformed = stats.Records, stats.Malformed
		res.Raw = raw
		return err
	}); res.Err != nil {
		return res
	}

	// The raw plot is saved before conditioning.
	var rawErr error
	if save {
		var path string
		if path, rawErr = d.rep.SaveRaw(res.Raw); rawErr == nil {
			res.Files = append(res.Files, path)
		} else {
			log.Warn("raw plot not saved", zap.Error(rawErr))
		}
	}

	if res.Err = step(StageCondition, func() error {
		c, err := d.cond.Condition(res.Raw, d.cfg.SampleRate())
		if err != nil {
			return err
		}
		if want := d.cfg.EffectiveRate(); math.Abs(c.Rate-want) > 1e-9*want {
			return fmt.Errorf("%w: conditioned rate %g Hz, want %g Hz", condition.ErrConditioning, c.Rate, want)
		}
		res.Conditioned = c
		return nil
	}); res.Err != nil {
		return res
	}

	if res.Err = step(StageAnalyze, func() error {
		wd, m, err := d.an.Analyze(res.Conditioned.Signal, res.Conditioned.Rate)
		res.Working = wd
		if err != nil {
			return err
		}
		res.Measures = m
		return nil
	}); res.Err != nil {
		return res
	}

	res.Err = step(StageReport, func() error {
		if err := report.PrintMeasures(d.out, res.Measures); err != nil {
			return err
		}
		if !save {
			return nil
		}
		if rawErr != nil {
			return rawErr
		}
		path, err := d.rep.SavePeaks(res.Working, res.Measures)
		if err != nil {
			return err
		}
		res.Files = append(res.Files, path)
		return nil
	})
	if res.Err == nil {
		log.Info("cycle done", zap.Float64("bpm", res.BPM()), zap.Strings("files", res.Files))
	}
	return res
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	changed := d.state != s
	d.state = s
	d.mu.Unlock()
	if !changed {
		return
	}

	d.cbMu.RLock()
	callbacks := make([]func(State), len(d.onState))
	copy(callbacks, d.onState)
	d.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(s)
	}
}

func (d *Driver) notify(res Result) {
	d.cbMu.RLock()
	callbacks := make([]func(Result), len(d.onCycle))
	copy(callbacks, d.onCycle)
	d.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(res)
		}
	}
}
