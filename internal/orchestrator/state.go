package orchestrator

// TaskState tracks where a symbol's analysis task is in its pipeline.
// Exposed through States for the status table and debug logging.
type TaskState int

const (
	StateIdle TaskState = iota
	StateFetching
	StatePredicting
	StateDeciding
	StateReserving
	StateExecuting
	StateNoAction
	StateProtected
	StateUnprotected
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StatePredicting:
		return "predicting"
	case StateDeciding:
		return "deciding"
	case StateReserving:
		return "reserving"
	case StateExecuting:
		return "executing"
	case StateNoAction:
		return "no_action"
	case StateProtected:
		return "protected"
	case StateUnprotected:
		return "unprotected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
