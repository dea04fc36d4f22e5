// Package errors provides structured error reporting for the keepalive
// library.
package errors

import (
	"fmt"
	"time"
)

// Kind identifies the category of an error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates an invalid region configuration.
	KindConfig
	// KindKey indicates a cache-key problem, such as two live candidates
	// resolving to the same key.
	KindKey
	// KindHook indicates a lifecycle hook failure or recovered panic.
	KindHook
	// KindPrune indicates a pruning contract violation, such as an attempt
	// to destroy the entry that is currently on screen.
	KindPrune
	// KindEngine indicates a failure reported by the rendering engine.
	KindEngine
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindKey:
		return "key"
	case KindHook:
		return "hook"
	case KindPrune:
		return "prune"
	case KindEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// Error represents a structured error in the keepalive library.
type Error struct {
	// Op is the operation that failed (e.g., "keepalive.Render").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Err is the underlying error.
	Err error
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HookError represents a lifecycle hook that failed or panicked while being
// dispatched to a subtree instance.
type HookError struct {
	// Op is the operation that dispatched the hook.
	Op string
	// Hook is the hook name (created, mounted, activated, ...).
	Hook string
	// Recovered is the panic value, nil if the hook returned an error.
	Recovered any
	// Err is the underlying error, nil for panics.
	Err error
	// StackTrace contains the call stack at the time of a panic.
	StackTrace string
	// Timestamp is when the failure occurred.
	Timestamp time.Time
}

func (e *HookError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s hook during %s: %v", e.Hook, e.Op, e.Recovered)
	}
	return fmt.Sprintf("%s hook failed during %s: %v", e.Hook, e.Op, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Handler receives errors reported by the keepalive library.
type Handler interface {
	// HandleError is called for structural errors and warnings.
	HandleError(err *Error)
	// HandleHookError is called when a lifecycle hook fails or panics.
	HandleHookError(err *HookError)
}
