// Package pipelog carries progress and skip-report lines from the analysis
// pipeline. Batch runs log per-location and per-track events through Logf so
// callers and tests can redirect or mute them.
package pipelog

import "log"

// Logf is the package-level pipeline logger. It defaults to log.Printf but may
// be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the pipeline logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
