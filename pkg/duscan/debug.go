package duscan

import (
	"os"
)

// Level represents a logging verbosity level.
type Level uint8

const (
	// LevelWarn only logs warnings and errors.
	LevelWarn Level = iota
	// LevelDebug additionally logs debug-level diagnostic information.
	LevelDebug
	// LevelTrace additionally logs per-entry traversal tracing, which is
	// verbose enough to materially slow down large scans.
	LevelTrace
)

// VerbosityLevel is the effective logging verbosity, controlled by the
// DUSCAN_LOG_LEVEL environment variable ("warn", "debug", or "trace") and
// overridable by the --log-level CLI flag.
var VerbosityLevel Level

func init() {
	switch os.Getenv("DUSCAN_LOG_LEVEL") {
	case "trace":
		VerbosityLevel = LevelTrace
	case "debug":
		VerbosityLevel = LevelDebug
	default:
		VerbosityLevel = LevelWarn
	}
}
