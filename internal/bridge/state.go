package bridge

// State tracks the bridge child process lifecycle.
//
// Starting covers process spawn through the initialize handshake; only after
// handshake success is the state Running and tool invocation permitted. Any
// unexpected process exit moves directly to Stopped, failing all pending
// requests.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
