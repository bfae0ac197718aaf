package ledship

// State is the lifecycle state of a Ledship instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// CanStart reports whether Start may be called in this state.
func (s State) CanStart() bool {
	return s == StateStopped || s == StateCrashed
}

// CanStop reports whether Stop may be called in this state.
func (s State) CanStop() bool {
	return s == StateStarting || s == StateRunning
}

// IsRunning reports whether frames are being processed.
func (s State) IsRunning() bool {
	return s == StateRunning
}
