package pipeline

// State is the lifecycle state of a Driver.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateConditioning
	StateAnalyzing
	StateReporting
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateConditioning:
		return "conditioning"
	case StateAnalyzing:
		return "analyzing"
	case StateReporting:
		return "reporting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Stage names a pipeline step in errors, logs and metrics.
type Stage string

const (
	StageConnect   Stage = "connect"
	StageAcquire   Stage = "acquire"
	StageCondition Stage = "condition"
	StageAnalyze   Stage = "analyze"
	StageReport    Stage = "report"
)

// Stages lists the per-cycle stages in execution order.
var Stages = []Stage{StageAcquire, StageCondition, StageAnalyze, StageReport}

func (s Stage) state() State {
	switch s {
	case StageAcquire:
		return StateAcquiring
	case StageCondition:
		return StateConditioning
	case StageAnalyze:
		return StateAnalyzing
	case StageReport:
		return StateReporting
	}
	return StateIdle
}
