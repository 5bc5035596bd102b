// Package monitoring holds the process-wide diagnostic logger. The sync
// engines run on hot sensor-callback paths, so routine logging is gated
// behind a debug flag while Logf stays available for rare events.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// but may be replaced by SetLogger; tests redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debug bool

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug toggles Debugf output.
func SetDebug(enabled bool) { debug = enabled }

// Debug reports whether debug logging is enabled.
func Debug() bool { return debug }

// Debugf logs through Logf only when debug logging is enabled. Use it on
// per-event paths where unconditional logging would flood the output.
func Debugf(format string, v ...interface{}) {
	if debug {
		Logf(format, v...)
	}
}
