package pipeline

import "fmt"

// State is a step of the request state machine
type State string

const (
	StateReceived      State = "RECEIVED"
	StateRateChecked   State = "RATE_CHECKED"
	StateMemberChecked State = "MEMBER_CHECKED"
	StateAcquired      State = "ACQUIRED"
	StateNormalized    State = "NORMALIZED"
	StateRecognized    State = "RECOGNIZED"
	StateResolved      State = "RESOLVED"
	StateDelivered     State = "DELIVERED"
	StateFailed        State = "FAILED"
)

var stateOrder = map[State]int{
	StateReceived:      0,
	StateRateChecked:   1,
	StateMemberChecked: 2,
	StateAcquired:      3,
	StateNormalized:    4,
	StateRecognized:    5,
	StateResolved:      6,
	StateDelivered:     7,
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}

// canAdvance allows only strictly forward moves between non-terminal states,
// and a move to FAILED from any non-terminal state.
func (s State) canAdvance(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	from, ok1 := stateOrder[s]
	to, ok2 := stateOrder[next]
	return ok1 && ok2 && to > from
}

// transitionError is raised as a panic on an illegal move and recovered as an internal failure
type transitionError struct {
	from, to State
}

func (e transitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.from, e.to)
}
