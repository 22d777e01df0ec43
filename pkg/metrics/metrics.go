// Package metrics exports pipeline cycle statistics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/logger"
	"github.com/itohio/goecg/pkg/pipeline"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	reg *prometheus.Registry

	cycles    *prometheus.CounterVec
	stages    *prometheus.HistogramVec
	records   prometheus.Counter
	malformed prometheus.Counter
	bpm       prometheus.Gauge
	lastCycle prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goecg_cycles_total",
				Help: "Total number of pipeline cycles by result",
			},
			[]string{"result"},
		),
		stages: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goecg_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		records: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goecg_records_total",
				Help: "Total number of records acquired",
			},
		),
		malformed: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goecg_malformed_records_total",
				Help: "Total number of malformed records",
			},
		),
		bpm: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "goecg_bpm",
				Help: "Heart rate of the last successful cycle",
			},
		),
		lastCycle: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "goecg_last_cycle_timestamp_seconds",
				Help: "Unix time of the last finished cycle",
			},
		),
	}
}

// Observe records a finished cycle. It matches pipeline.Driver.OnCycle.
func (m *Metrics) Observe(res pipeline.Result) {
	result := "ok"
	if res.Err != nil {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()

	for stage, d := range res.Durations {
		m.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
	}
	m.records.Add(float64(res.Records))
	m.malformed.Add(float64(res.Malformed))

	if res.Err == nil {
		if bpm := res.BPM(); !math.IsNaN(bpm) {
			m.bpm.Set(bpm)
		}
	}
	m.lastCycle.Set(float64(res.Time.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	log = logger.OrNop(log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
