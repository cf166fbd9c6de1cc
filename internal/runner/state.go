package runner

// State is the per-run lifecycle marker:
// pending -> (skipped | running -> succeeded|failed). Terminal states are
// never left; a failed run is never re-attempted.
type State int

const (
	StatePending State = iota
	StateSkipped
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSkipped:
		return "skipped"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run has been recorded and will not move
// again.
func (s State) Terminal() bool {
	switch s {
	case StateSkipped, StateSucceeded, StateFailed:
		return true
	}
	return false
}

// CanTransition validates a state-machine edge.
func (s State) CanTransition(to State) bool {
	switch s {
	case StatePending:
		return to == StateSkipped || to == StateRunning
	case StateRunning:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}
