package core

// State is a step of a single conversion invocation.
type State int

const (
	StateIdle State = iota
	StateRuntimeLoading
	StateNormalizing
	StateDecoding
	StateEncoding
	StateAssembling
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateRuntimeLoading: "runtime_loading",
	StateNormalizing:    "normalizing",
	StateDecoding:       "decoding",
	StateEncoding:       "encoding",
	StateAssembling:     "assembling",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends an invocation.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// next lists the only forward transition out of each working state.
var next = map[State]State{
	StateIdle:           StateRuntimeLoading,
	StateRuntimeLoading: StateNormalizing,
	StateNormalizing:    StateDecoding,
	StateDecoding:       StateEncoding,
	StateEncoding:       StateAssembling,
	StateAssembling:     StateDone,
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}
