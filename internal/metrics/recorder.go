package metrics

import "time"

// Recorder defines observability hooks for package and cell build metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObservePackageDuration(pkg, stage string, d time.Duration)
	IncPackageOutcome(state string) // state: succeeded|failed|skipped
	ObserveCellDuration(cell string, d time.Duration, success bool)
	IncCellOutcome(success bool)
	IncCloneRetry(pkg string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePackageDuration(string, string, time.Duration)  {}
func (NoopRecorder) IncPackageOutcome(string)                              {}
func (NoopRecorder) ObserveCellDuration(string, time.Duration, bool)       {}
func (NoopRecorder) IncCellOutcome(bool)                                   {}
func (NoopRecorder) IncCloneRetry(string)                                  {}
