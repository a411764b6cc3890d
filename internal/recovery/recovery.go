// Package recovery turns panics into either a clean fatal exit or a logged,
// contained failure.
package recovery

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
)

// fatalOut and exit are replaced in tests.
var (
	fatalOut io.Writer = os.Stderr
	exit               = os.Exit
)

// HandlePanic should be deferred at the top of main(). It prints the panic
// and stack to stderr and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		die(r, nil)
	}
}

// HandlePanicFunc is HandlePanic with a cleanup hook that runs before exit,
// e.g. to switch an actuator off.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		die(r, cleanup)
	}
}

func die(r any, cleanup func()) {
	_, _ = fmt.Fprintf(fatalOut, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
	if cleanup != nil {
		cleanup()
	}
	exit(1)
}

// Contain recovers a panic and logs it instead of crashing. Defer it in
// callbacks supplied by other packages, where one bad call should not take
// down a receive session or a transmission.
//
//	defer recovery.Contain(logger, "output handler")
func Contain(logger *slog.Logger, what string) {
	if r := recover(); r != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("recovered panic", "in", what, "panic", r, "stack", string(debug.Stack()))
	}
}
