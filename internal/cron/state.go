package cron

// State is the scheduler lifecycle state.
type State int

// Scheduler states. The only legal sequence is
// Stopped → Starting → Running → StopPending → Stopped; a failed start goes
// from Starting straight back to Stopped.
const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopPending
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopPending:
		return "stop_pending"
	default:
		return "unknown"
	}
}
