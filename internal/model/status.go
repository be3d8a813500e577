package model

import "fmt"

// State is the lifecycle position of a single conversion.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

var allowedTransitions = map[State]map[State]bool{
	StateIdle: {
		StateStarting: true,
	},
	StateStarting: {
		StateRunning: true,
		StateSkipped: true, // destination already exists
		StateFailed:  true,
	},
	StateRunning: {
		StateSucceeded: true,
		StateFailed:    true,
	},
	StateSucceeded: {},
	StateSkipped:   {},
	StateFailed:    {},
}

func IsKnownState(state State) bool {
	_, ok := allowedTransitions[state]
	return ok
}

func CanTransition(from, to State) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether no further transition is possible from state.
func IsTerminal(state State) bool {
	next, ok := allowedTransitions[state]
	return ok && len(next) == 0
}

// OK reports whether the state counts as a successful outcome in batch totals.
func (s State) OK() bool {
	return s == StateSucceeded || s == StateSkipped
}

func TransitionResult(res *Result, to State) error {
	from := res.State
	if from == "" {
		from = StateIdle
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid conversion state transition: %q -> %q (input=%s)", from, to, res.Job.InputPath)
	}
	res.State = to
	return nil
}
