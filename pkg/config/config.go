package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that cannot be loaded or run.
var ErrInvalid = errors.New("invalid configuration")

// Loop error policies.
const (
	OnErrorAbort    = "abort"
	OnErrorContinue = "continue"
)

// Optional filter stage types.
const (
	FilterNone     = "none"
	FilterLowpass  = "lowpass"
	FilterHighpass = "highpass"
	FilterBandpass = "bandpass"
)

// Config represents the application configuration.
type Config struct {
	Serial       SerialConfig       `yaml:"serial"`
	Sampling     SamplingConfig     `yaml:"sampling"`
	Conditioning ConditioningConfig `yaml:"conditioning"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	Output       OutputConfig       `yaml:"output"`
	Loop         LoopConfig         `yaml:"loop"`
	Log          LogConfig          `yaml:"log"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Publish      PublishConfig      `yaml:"publish"`
	Mock         MockConfig         `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"` // Per-read timeout; a timed out read yields an empty line
}

// SamplingConfig describes the acquisition window.
type SamplingConfig struct {
	SampleTime  float64 `yaml:"sample_time"`  // Window length (s)
	SampleDelay float64 `yaml:"sample_delay"` // Delay between MCU samples (s), tuned for timer drift
	Upsample    int     `yaml:"upsample"`     // Resampling factor applied after filtering
}

// ConditioningConfig contains filter parameters.
type ConditioningConfig struct {
	BaselineCutoff float64      `yaml:"baseline_cutoff"` // Hz
	NotchCutoff    float64      `yaml:"notch_cutoff"`    // Hz
	NotchQ         float64      `yaml:"notch_q"`
	BypassBaseline bool         `yaml:"bypass_baseline"`
	BypassNotch    bool         `yaml:"bypass_notch"`
	Filter         FilterConfig `yaml:"filter"`
}

// FilterConfig configures the optional Butterworth stage.
type FilterConfig struct {
	Type       string  `yaml:"type"`
	CutoffLow  float64 `yaml:"cutoff_low"`  // Hz
	CutoffHigh float64 `yaml:"cutoff_high"` // Hz
}

// AnalysisConfig contains peak detection parameters.
type AnalysisConfig struct {
	WindowSize        float64 `yaml:"window_size"` // Rolling mean window (s)
	BPMMin            float64 `yaml:"bpm_min"`
	BPMMax            float64 `yaml:"bpm_max"`
	HighPrecision     bool    `yaml:"high_precision"`
	HighPrecisionFS   float64 `yaml:"high_precision_fs"`
	RejectSegmentwise bool    `yaml:"reject_segmentwise"`
}

// OutputConfig controls reporting.
type OutputConfig struct {
	Path   string  `yaml:"path"`
	Prefix string  `yaml:"prefix"`  // Filename prefix and title tag
	Format string  `yaml:"format"`  // Image extension: png, svg, pdf, jpg
	BPMTag string  `yaml:"bpm_tag"` // Display only, not cross-checked with the computed bpm
	Width  float64 `yaml:"width"`   // Inches
	Height float64 `yaml:"height"`  // Inches
}

// LoopConfig controls the continuous mode.
type LoopConfig struct {
	OnError string `yaml:"on_error"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the prometheus endpoint. Empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// PublishConfig controls NATS publication. Empty URL disables it.
type PublishConfig struct {
	URL         string `yaml:"url"`
	Subject     string `yaml:"subject"`      // Per-cycle measures as JSON
	WaveSubject string `yaml:"wave_subject"` // Conditioned signal as little endian float32; empty disables
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	HeartRate float64       `yaml:"heart_rate"` // Simulated heart rate (bpm)
	Noise     float64       `yaml:"noise"`      // Noise amplitude relative to R peak
	Wander    float64       `yaml:"wander"`     // Baseline wander amplitude relative to R peak
	Offset    float64       `yaml:"offset"`     // ADC counts at zero signal
	Gain      float64       `yaml:"gain"`       // ADC counts per unit signal
	Label     string        `yaml:"label"`      // Record label
	Pace      bool          `yaml:"pace"`       // Emit lines in real time
	Interval  time.Duration `yaml:"interval"`   // Line interval when paced
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "COM6", // Should be "/dev/ttyACM0" or similar on Linux/Mac
			Baud:        115200,
			ReadTimeout: time.Second,
		},
		Sampling: SamplingConfig{
			SampleTime:  5,
			SampleDelay: 0.0107,
			Upsample:    2,
		},
		Conditioning: ConditioningConfig{
			BaselineCutoff: 0.05,
			NotchCutoff:    0.05,
			NotchQ:         0.005,
			Filter: FilterConfig{
				Type: FilterNone,
			},
		},
		Analysis: AnalysisConfig{
			WindowSize:      0.75,
			BPMMin:          40,
			BPMMax:          180,
			HighPrecision:   false,
			HighPrecisionFS: 100,
		},
		Output: OutputConfig{
			Path:   ".",
			Prefix: "ecg",
			Format: "png",
			Width:  12,
			Height: 4,
		},
		Loop: LoopConfig{
			OnError: OnErrorAbort,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Publish: PublishConfig{
			Subject: "ecg.measures",
		},
		Mock: MockConfig{
			HeartRate: 72,
			Noise:     0.02,
			Wander:    0.1,
			Offset:    2048,
			Gain:      800,
			Label:     "ECG",
			Pace:      false,
			Interval:  10700 * time.Microsecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: failed to read config file: %w", ErrInvalid, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %w", ErrInvalid, err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SampleRate returns the nominal MCU sample rate in Hz.
func (c *Config) SampleRate() float64 {
	return 1 / c.Sampling.SampleDelay
}

// BufferLen returns the number of records in one acquisition window.
func (c *Config) BufferLen() int {
	return int(math.Round(c.Sampling.SampleTime / c.Sampling.SampleDelay))
}

// EffectiveRate returns the sample rate of the resampled signal.
func (c *Config) EffectiveRate() float64 {
	return c.SampleRate() * float64(c.Sampling.Upsample)
}

// Validate checks that the configuration describes a runnable pipeline.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Serial.Baud)
	}
	if c.Sampling.SampleTime <= 0 {
		return fmt.Errorf("sample_time must be positive, got %g", c.Sampling.SampleTime)
	}
	if c.Sampling.SampleDelay <= 0 {
		return fmt.Errorf("sample_delay must be positive, got %g", c.Sampling.SampleDelay)
	}
	if c.Sampling.Upsample < 1 {
		return fmt.Errorf("upsample must be at least 1, got %d", c.Sampling.Upsample)
	}
	if c.BufferLen() < 1 {
		return fmt.Errorf("sample window holds no samples (sample_time=%g, sample_delay=%g)", c.Sampling.SampleTime, c.Sampling.SampleDelay)
	}

	switch c.Conditioning.Filter.Type {
	case FilterNone:
	case FilterLowpass, FilterHighpass:
		if c.Conditioning.Filter.CutoffLow <= 0 && c.Conditioning.Filter.CutoffHigh <= 0 {
			return fmt.Errorf("%s filter needs a cutoff", c.Conditioning.Filter.Type)
		}
	case FilterBandpass:
		if c.Conditioning.Filter.CutoffLow <= 0 || c.Conditioning.Filter.CutoffHigh <= c.Conditioning.Filter.CutoffLow {
			return fmt.Errorf("bandpass filter needs 0 < cutoff_low < cutoff_high")
		}
	default:
		return fmt.Errorf("unknown filter type %q", c.Conditioning.Filter.Type)
	}

	if c.Analysis.BPMMin <= 0 || c.Analysis.BPMMax <= c.Analysis.BPMMin {
		return fmt.Errorf("invalid bpm range [%g, %g]", c.Analysis.BPMMin, c.Analysis.BPMMax)
	}
	if c.Analysis.HighPrecision && c.Analysis.HighPrecisionFS <= c.EffectiveRate() {
		return fmt.Errorf("high_precision_fs %g must exceed the resampled rate %g", c.Analysis.HighPrecisionFS, c.EffectiveRate())
	}

	switch c.Output.Format {
	case "png", "jpg", "jpeg", "svg", "pdf", "eps", "tif", "tiff":
	default:
		return fmt.Errorf("unsupported image format %q", c.Output.Format)
	}

	switch c.Loop.OnError {
	case OnErrorAbort, OnErrorContinue:
	default:
		return fmt.Errorf("unknown loop error policy %q", c.Loop.OnError)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.Sampling.SampleTime == 0 {
		c.Sampling.SampleTime = def.Sampling.SampleTime
	}
	if c.Sampling.SampleDelay == 0 {
		c.Sampling.SampleDelay = def.Sampling.SampleDelay
	}
	if c.Sampling.Upsample == 0 {
		c.Sampling.Upsample = def.Sampling.Upsample
	}

	if c.Conditioning.BaselineCutoff == 0 {
		c.Conditioning.BaselineCutoff = def.Conditioning.BaselineCutoff
	}
	if c.Conditioning.NotchCutoff == 0 {
		c.Conditioning.NotchCutoff = def.Conditioning.NotchCutoff
	}
	if c.Conditioning.NotchQ == 0 {
		c.Conditioning.NotchQ = def.Conditioning.NotchQ
	}
	if c.Conditioning.Filter.Type == "" {
		c.Conditioning.Filter.Type = def.Conditioning.Filter.Type
	}

	if c.Analysis.WindowSize == 0 {
		c.Analysis.WindowSize = def.Analysis.WindowSize
	}
	if c.Analysis.BPMMin == 0 {
		c.Analysis.BPMMin = def.Analysis.BPMMin
	}
	if c.Analysis.BPMMax == 0 {
		c.Analysis.BPMMax = def.Analysis.BPMMax
	}
	if c.Analysis.HighPrecisionFS == 0 {
		c.Analysis.HighPrecisionFS = def.Analysis.HighPrecisionFS
	}

	if c.Output.Path == "" {
		c.Output.Path = def.Output.Path
	}
	if c.Output.Prefix == "" {
		c.Output.Prefix = def.Output.Prefix
	}
	if c.Output.Format == "" {
		c.Output.Format = def.Output.Format
	}
	if c.Output.Width == 0 {
		c.Output.Width = def.Output.Width
	}
	if c.Output.Height == 0 {
		c.Output.Height = def.Output.Height
	}

	if c.Loop.OnError == "" {
		c.Loop.OnError = def.Loop.OnError
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.Publish.Subject == "" {
		c.Publish.Subject = def.Publish.Subject
	}

	if c.Mock.HeartRate == 0 {
		c.Mock.HeartRate = def.Mock.HeartRate
	}
	if c.Mock.Gain == 0 {
		c.Mock.Gain = def.Mock.Gain
	}
	if c.Mock.Label == "" {
		c.Mock.Label = def.Mock.Label
	}
	if c.Mock.Interval == 0 {
		c.Mock.Interval = def.Mock.Interval
	}
}
