package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/itohio/goecg/pkg/acquire"
	"github.com/itohio/goecg/pkg/condition"
	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/device"
	"github.com/itohio/goecg/pkg/hrv"
	"github.com/itohio/goecg/pkg/report"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitAcquisition  = 2
	ExitConditioning = 3
	ExitAnalysis     = 4
	ExitOutput       = 5
	ExitConfig       = 6
	ExitInterrupted  = 130
)

// StageError records which stage of which cycle failed.
type StageError struct {
	Stage Stage
	Cycle int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cycle %d: %s: %v", e.Cycle, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, config.ErrInvalid):
		return ExitConfig
	case errors.Is(err, device.ErrTransport),
		errors.Is(err, device.ErrNotConnected),
		errors.Is(err, acquire.ErrMalformedRecord):
		return ExitAcquisition
	case errors.Is(err, condition.ErrConditioning):
		return ExitConditioning
	case errors.Is(err, hrv.ErrAnalysis):
		return ExitAnalysis
	case errors.Is(err, report.ErrOutput):
		return ExitOutput
	}

	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case StageConnect, StageAcquire:
			return ExitAcquisition
		case StageCondition:
			return ExitConditioning
		case StageAnalyze:
			return ExitAnalysis
		case StageReport:
			return ExitOutput
		}
	}
	return ExitFailure
}

// Trace returns the messages of err and every error it wraps, outermost first.
// Joined errors are walked depth first.
func Trace(err error) []string {
	var out []string
	var walk func(err error, depth int)
	walk = func(err error, depth int) {
		if err == nil {
			return
		}
		out = append(out, fmt.Sprintf("%*s%s", 2*depth, "", err.Error()))
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			walk(u.Unwrap(), depth+1)
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e, depth+1)
			}
		}
	}
	walk(err, 0)
	return out
}

// fatal reports errors that end a continuous run regardless of policy.
func fatal(err error) bool {
	return errors.Is(err, device.ErrTransport) || errors.Is(err, device.ErrNotConnected)
}
