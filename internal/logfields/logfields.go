package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPackage    = "package"
	KeyStage      = "stage"
	KeyState      = "state"
	KeySystem     = "system"
	KeyArch       = "arch"
	KeyCell       = "cell"
	KeyURL        = "url"
	KeyRevision   = "revision"
	KeyPath       = "path"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr      { return slog.String(KeyRunID, id) }
func Package(name string) slog.Attr  { return slog.String(KeyPackage, name) }
func Stage(name string) slog.Attr    { return slog.String(KeyStage, name) }
func State(s string) slog.Attr       { return slog.String(KeyState, s) }
func System(name string) slog.Attr   { return slog.String(KeySystem, name) }
func Arch(name string) slog.Attr     { return slog.String(KeyArch, name) }
func Cell(name string) slog.Attr     { return slog.String(KeyCell, name) }
func URL(u string) slog.Attr         { return slog.String(KeyURL, u) }
func Revision(rev string) slog.Attr  { return slog.String(KeyRevision, rev) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func Attempt(n int) slog.Attr        { return slog.Int(KeyAttempt, n) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Milliseconds()))
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
