package rows

import "fmt"

// State is a row's persistence lifecycle state
type State string

const (
	StateClean   State = "clean"
	StateDirty   State = "dirty"
	StateSaving  State = "saving"
	StateErrored State = "errored"
)

// Lifecycle is a row's state plus the failure message when errored.
type Lifecycle struct {
	State   State
	Message string
}

var transitions = map[State][]State{
	StateClean:   {StateDirty},
	StateDirty:   {StateSaving},
	StateSaving:  {StateClean, StateErrored},
	StateErrored: {StateDirty, StateSaving},
}

// CanTransition reports whether from -> to is a permitted lifecycle step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (l *Lifecycle) moveTo(to State, message string) error {
	if !CanTransition(l.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.State, to)
	}
	l.State = to
	l.Message = message
	return nil
}
