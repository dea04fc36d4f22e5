// Package lifecycle implements the activation state machine for keep-alive
// subtrees: hook dispatch, recursive descendant propagation through the
// rendering engine, and suppression of activate/deactivate notifications
// while an ancestor region is inactive.
package lifecycle

// State describes a subtree instance's activation state within its region.
type State int

const (
	// StateDeactivated means the instance is cached off-tree, or has never
	// been notified of activation.
	StateDeactivated State = iota
	// StateActive means the instance is the region's current display.
	StateActive
	// StateUnmounted is terminal: the instance has been destroyed.
	StateUnmounted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDeactivated:
		return "deactivated"
	case StateUnmounted:
		return "unmounted"
	default:
		return "unknown"
	}
}
