package api

// State is the transport lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateSeeking
	StateStopped
	StateFinished
	StateError
)

var stateNames = map[State]string{
	StateIdle:     "idle",
	StateLoading:  "loading",
	StatePlaying:  "playing",
	StatePaused:   "paused",
	StateSeeking:  "seeking",
	StateStopped:  "stopped",
	StateFinished: "finished",
	StateError:    "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Active reports whether the state holds decoder and device resources.
func (s State) Active() bool {
	switch s {
	case StatePlaying, StatePaused, StateSeeking:
		return true
	}
	return false
}
