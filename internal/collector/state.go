package collector

import "sync/atomic"

type State int32

const (
	Starting State = iota
	Running
	Draining
	Stopped
)

func (state State) String() string {
	switch state {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Allowed next states. Starting may drain when startup fails part way.
var transitions = map[State][]State{
	Starting: {Running, Draining, Stopped},
	Running:  {Draining},
	Draining: {Stopped},
}

type stateMachine struct {
	current atomic.Int32
}

func (machine *stateMachine) load() State {
	return State(machine.current.Load())
}

// Moves from the current state to next, rejecting anything not in the transition table
func (machine *stateMachine) transition(next State) (err error) {
	for {
		current := machine.load()

		allowed := false
		for _, candidate := range transitions[current] {
			if candidate == next {
				allowed = true
				break
			}
		}
		if !allowed {
			err = &StateError{From: current, To: next}
			return
		}

		if machine.current.CompareAndSwap(int32(current), int32(next)) {
			return
		}
	}
}
