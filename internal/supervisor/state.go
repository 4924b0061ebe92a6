package supervisor

// State is the supervisor's lifecycle state. Transitions only move
// forward: Running -> Draining -> ForceKilling -> Exited, with the
// two middle states skipped when there is nothing left to wait for.
type State int

const (
	// StateRunning is normal operation: workers are supervised,
	// crashes are restarted, and scaling is active.
	StateRunning State = iota

	// StateDraining means shutdown has begun. Scaling and restarts are
	// frozen and every worker has been asked to exit gracefully.
	StateDraining

	// StateForceKilling means the drain grace period expired and the
	// remaining workers have been sent SIGKILL.
	StateForceKilling

	// StateExited is terminal: all workers are gone or given up on.
	StateExited
)

// String returns the snake_case name of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateForceKilling:
		return "force_killing"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}
