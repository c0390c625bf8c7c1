package prepare

// State is the lifecycle position of one invocation.
type State int32

const (
	StatePending State = iota
	StateExecuting
	StateSucceeded
	StateFailed
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuting:
		return "executing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
