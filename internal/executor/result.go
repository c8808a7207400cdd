package executor

import "time"

// Result is the settled outcome of building one package.
type Result struct {
	Package       string
	State         State
	Stage         Stage // failure stage when State is StateFailed
	Duration      time.Duration
	CloneAttempts int
	Err           error
	LogPath       string
	OutputTail    string // last lines of build output, populated on failure
}

// Succeeded reports whether the package built and installed cleanly.
func (r Result) Succeeded() bool { return r.State == StateSucceeded }
