package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/device"
	"github.com/itohio/goecg/pkg/logger"
	"github.com/itohio/goecg/pkg/metrics"
	"github.com/itohio/goecg/pkg/pipeline"
	"github.com/itohio/goecg/pkg/publish"
)

// app is one configured run: device, driver and the optional observers.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	dev       device.Device
	driver    *pipeline.Driver
	metrics   *metrics.Metrics
	publisher *publish.Publisher
	opts      *options
}

func newApp(opts *options) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "goecg")
	if err != nil {
		return nil, fmt.Errorf("%w: logger: %w", config.ErrInvalid, err)
	}

	a := &app{cfg: cfg, log: log, opts: opts}
	if opts.mock {
		a.dev = device.NewMock(&cfg.Mock, cfg.Sampling.SampleDelay)
		log.Info("using simulated device", zap.Float64("heart_rate", cfg.Mock.HeartRate))
	} else {
		a.dev = device.New(cfg.Serial.Port, cfg.Serial.Baud, cfg.Serial.ReadTimeout, log)
	}

	a.driver = pipeline.New(cfg, a.dev, opts.stdout, log)
	log.Info("run started", zap.String("run", a.driver.Run()), zap.String("port", cfg.Serial.Port))
	fmt.Fprintf(opts.stdout, "Sample rate: %v, Sample time: %v\n", cfg.SampleRate(), cfg.Sampling.SampleTime)

	a.metrics = metrics.New()
	a.driver.OnCycle(a.metrics.Observe)

	if cfg.Publish.URL != "" {
		nc, err := publish.Connect(cfg.Publish.URL)
		if err != nil {
			log.Warn("publishing disabled", zap.String("url", cfg.Publish.URL), zap.Error(err))
		} else {
			a.publisher = publish.New(nc, cfg.Publish, log)
			a.driver.OnCycle(a.publisher.Observe)
		}
	}

	return a, nil
}

// serveMetrics exposes the metrics endpoint in the background when configured.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := a.metrics.Serve(ctx, a.cfg.Metrics.Addr, a.log); err != nil {
			a.log.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close drains the publisher and flushes the logger.
func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("failed to drain publisher", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
