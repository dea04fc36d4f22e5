package errors

import (
	"fmt"
	"os"
)

// LogHandler is a Handler that logs errors to stderr.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
}

// HandleError logs an Error to stderr.
func (h *LogHandler) HandleError(err *Error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "[keepalive error] %s [%s]: %v\n", err.Op, err.Kind, err.Err)
}

// HandleHookError logs a HookError to stderr.
func (h *LogHandler) HandleHookError(err *HookError) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "[keepalive hook error] %s\n", err.Error())
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", err.StackTrace)
	}
}
