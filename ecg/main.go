package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/device"
	"github.com/itohio/goecg/pkg/pipeline"
)

// options holds flags shared by all commands. Set flags override the config file.
type options struct {
	configFile string
	port       string
	mock       bool
	prefix     string
	path       string
	onError    string
	logLevel   string
	display    bool
	force      bool

	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&options{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return pipeline.ExitOK
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stdout, "Aborting analysis")
	}
	for _, line := range pipeline.Trace(err) {
		fmt.Fprintln(stderr, line)
	}
	return pipeline.ExitCode(err)
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "ecg",
		Short: "Capture an ECG window over serial and report heart rate statistics",
		Long: `ecg reads "label:value" ADC records from a microcontroller over a serial
port, removes baseline wander, suppresses the T wave with a notch filter,
upsamples the signal and derives heart rate variability measures from the
detected R peaks.

Exit codes:
  0    success
  1    other failure
  2    acquisition failure (transport or malformed record)
  3    conditioning failure
  4    analysis failure
  5    output failure
  6    invalid configuration
  130  interrupted`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "config.yaml", "configuration file path")
	pf.StringVarP(&opts.port, "port", "p", "", "serial port override (e.g. COM6 or /dev/ttyACM0)")
	pf.BoolVar(&opts.mock, "mock", false, "use the simulated ECG device instead of a serial port")
	pf.StringVar(&opts.prefix, "prefix", "", "file name prefix and plot title tag")
	pf.StringVar(&opts.path, "path", "", "output directory for plot images")
	pf.StringVar(&opts.onError, "on-error", "", "continuous mode policy for failed cycles: abort or continue")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newOnceCmd(opts),
		newRunCmd(opts),
		newPortsCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func newOnceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Capture one window, print the measures and save the raw and peak plots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.driver.RunOnce(cmd.Context())
			return err
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture and analyze windows continuously until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			a.serveMetrics(cmd.Context())

			if opts.display {
				return runDisplay(cmd.Context(), a)
			}
			return a.driver.RunContinuous(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&opts.display, "display", false, "show a live scope window")
	return cmd
}

func newPortsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := device.Ports()
			if err != nil {
				return fmt.Errorf("%w: %w", device.ErrTransport, err)
			}
			if len(ports) == 0 {
				fmt.Fprintln(opts.stdout, "No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(opts.stdout, p.Name)
			}
			return nil
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := opts.configFile
			if len(args) == 1 {
				file = args[0]
			}
			if _, err := os.Stat(file); err == nil && !opts.force {
				return fmt.Errorf("%w: %s already exists, use --force to overwrite", config.ErrInvalid, file)
			}
			if err := config.Default().Save(file); err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "Wrote %s\n", file)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with derived sample parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "port: %s\nsample rate: %v Hz\nbuffer length: %d\neffective rate: %v Hz\n",
				cfg.Serial.Port, cfg.SampleRate(), cfg.BufferLen(), cfg.EffectiveRate())
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// loadConfig reads the config file, applies flag overrides and validates the result.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.configFile, err)
	}

	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}
	if opts.prefix != "" {
		cfg.Output.Prefix = opts.prefix
	}
	if opts.path != "" {
		cfg.Output.Path = opts.path
	}
	if opts.onError != "" {
		cfg.Loop.OnError = opts.onError
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
