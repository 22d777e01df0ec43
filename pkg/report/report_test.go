package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/hrv"
)

func analysis(t *testing.T) ([]float64, *hrv.WorkingData, hrv.Measures) {
	t.Helper()

	fs := 100.0
	x := make([]float64, 1000)
	for b := 0.4; b < 10; b += 60.0 / 72 {
		for i := range x {
			z := (float64(i) - b*fs) / 2
			x[i] += 800 * math.Exp(-0.5*z*z)
		}
	}

	wd, m, err := hrv.Process(x, fs, hrv.DefaultOptions())
	require.NoError(t, err)
	return x, wd, m
}

func outputConfig(dir string) config.OutputConfig {
	cfg := config.Default().Output
	cfg.Path = dir
	cfg.Prefix = "Wandering Baseline"
	cfg.BPMTag = "72"
	return cfg
}

func TestReporter_Paths(t *testing.T) {
	r := New(outputConfig("graphs"), nil)
	raw, hp := r.Paths()
	assert.Equal(t, filepath.Join("graphs", "Wandering Baseline_raw.png"), raw)
	assert.Equal(t, filepath.Join("graphs", "Wandering Baseline_hp.png"), hp)

	cfg := outputConfig("out")
	cfg.Format = "svg"
	raw, hp = New(cfg, nil).Paths()
	assert.Equal(t, filepath.Join("out", "Wandering Baseline_raw.svg"), raw)
	assert.Equal(t, filepath.Join("out", "Wandering Baseline_hp.svg"), hp)
}

func TestReporter_Titles(t *testing.T) {
	raw, wd, m := analysis(t)
	r := New(outputConfig(t.TempDir()), nil)

	rp, err := r.RawPlot(raw)
	require.NoError(t, err)
	assert.Equal(t, "Raw Data, Wandering Baseline, BPM: 72", rp.Title.Text)
	assert.Equal(t, "ADC Counts", rp.Y.Label.Text)

	pp, err := r.PeakPlot(wd, m)
	require.NoError(t, err)
	assert.Equal(t, "Heart Rate Signal Peak Detection, Wandering Baseline, BPM: 72", pp.Title.Text)

	bare := New(config.OutputConfig{}, nil)
	rp, err = bare.RawPlot(raw)
	require.NoError(t, err)
	assert.Equal(t, "Raw Data", rp.Title.Text)
}

func saveBoth(t *testing.T, r *Reporter, raw []float64, wd *hrv.WorkingData, m hrv.Measures) []string {
	t.Helper()
	rawFile, err := r.SaveRaw(raw)
	require.NoError(t, err)
	hpFile, err := r.SavePeaks(wd, m)
	require.NoError(t, err)
	return []string{rawFile, hpFile}
}

func TestReporter_Save(t *testing.T) {
	dir := t.TempDir()
	raw, wd, m := analysis(t)
	r := New(outputConfig(dir), nil)

	files := saveBoth(t, r, raw, wd, m)
	rawPath, hpPath := r.Paths()
	assert.Equal(t, []string{rawPath, hpPath}, files)

	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	// a second run overwrites the same two files
	again := saveBoth(t, r, raw, wd, m)
	assert.Equal(t, files, again)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReporter_SaveRaw_Only(t *testing.T) {
	dir := t.TempDir()
	raw, _, _ := analysis(t)
	r := New(outputConfig(dir), nil)

	path, err := r.SaveRaw(raw)
	require.NoError(t, err)
	assert.FileExists(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReporter_Save_InvalidPath(t *testing.T) {
	raw, wd, m := analysis(t)
	r := New(outputConfig(filepath.Join(t.TempDir(), "missing", "dir")), nil)

	_, err := r.SaveRaw(raw)
	assert.ErrorIs(t, err, ErrOutput)

	_, err = r.SavePeaks(wd, m)
	assert.ErrorIs(t, err, ErrOutput)
}

func TestReporter_RawPlot_NaN(t *testing.T) {
	r := New(config.OutputConfig{}, nil)
	_, err := r.RawPlot([]float64{1, math.NaN(), 3})
	assert.ErrorIs(t, err, ErrOutput)
}

func TestPrintMeasures(t *testing.T) {
	var m hrv.Measures
	m.Set("bpm", 72)
	m.Set("ibi", 833.3333333)
	m.Set("breathingrate", math.NaN())

	var buf bytes.Buffer
	require.NoError(t, PrintMeasures(&buf, m))
	assert.Equal(t, "bpm: 72.000000\nibi: 833.333333\nbreathingrate: nan\n", buf.String())
}
