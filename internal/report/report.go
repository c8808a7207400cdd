// Package report captures and persists the outcome of build runs: a machine
// readable build_report.json and a human readable build_report.txt per matrix
// cell, plus an aggregate report for matrix runs.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/cxxpack/internal/executor"
)

const schemaVersion = 1

// PackageOutcome is the serialized per-package result, in resolver order.
type PackageOutcome struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Stage         string `json:"stage,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
	CloneAttempts int    `json:"clone_attempts,omitempty"`
	Error         string `json:"error,omitempty"`
	LogPath       string `json:"log_path,omitempty"`
	OutputTail    string `json:"output_tail,omitempty"`
}

// FromResult converts a settled executor result into its serialized form.
func FromResult(res executor.Result) PackageOutcome {
	o := PackageOutcome{
		Name:          res.Package,
		State:         string(res.State),
		DurationMS:    res.Duration.Milliseconds(),
		CloneAttempts: res.CloneAttempts,
		LogPath:       res.LogPath,
	}
	if res.State == executor.StateFailed {
		o.Stage = string(res.Stage)
		o.OutputTail = res.OutputTail
	}
	if res.Err != nil {
		o.Error = res.Err.Error()
	}
	return o
}

// CellReport aggregates the outcomes of one matrix cell.
type CellReport struct {
	SchemaVersion int              `json:"schema_version"`
	RunID         string           `json:"run_id"`
	System        string           `json:"system"`
	Arch          string           `json:"arch"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	Packages      []PackageOutcome `json:"packages"`
	Succeeded     int              `json:"succeeded"`
	Failed        int              `json:"failed"`
	Skipped       int              `json:"skipped"`
	Canceled      int              `json:"canceled"`
	Success       bool             `json:"success"`
}

// NewCellReport starts a report for one (system, arch) cell.
func NewCellReport(runID, system, arch string) *CellReport {
	return &CellReport{
		SchemaVersion: schemaVersion,
		RunID:         runID,
		System:        system,
		Arch:          arch,
		Start:         time.Now(),
	}
}

// Add records one settled package outcome. Call order determines report order.
func (r *CellReport) Add(res executor.Result) {
	r.Packages = append(r.Packages, FromResult(res))
	switch res.State {
	case executor.StateSucceeded:
		r.Succeeded++
	case executor.StateFailed:
		r.Failed++
	case executor.StateSkipped:
		r.Skipped++
	case executor.StateCanceled:
		r.Canceled++
	}
}

// Finish stamps the end time and derives overall success. A cell succeeds
// only when every package succeeded.
func (r *CellReport) Finish() {
	r.End = time.Now()
	r.Success = r.Failed == 0 && r.Skipped == 0 && r.Canceled == 0 && r.Succeeded == len(r.Packages)
}

// Summary returns a human-readable single-line summary.
func (r *CellReport) Summary() string {
	return fmt.Sprintf("cell=%s-%s packages=%d succeeded=%d failed=%d skipped=%d canceled=%d duration=%s success=%t",
		r.System, r.Arch, len(r.Packages), r.Succeeded, r.Failed, r.Skipped, r.Canceled,
		r.End.Sub(r.Start).Truncate(time.Millisecond), r.Success)
}

// Text renders the human readable report body.
func (r *CellReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build Report (%s/%s)\n", r.System, r.Arch)
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, p := range r.Packages {
		fmt.Fprintf(&b, "%s: %s\n", p.Name, strings.ToUpper(p.State))
		if p.Stage != "" {
			fmt.Fprintf(&b, "  Stage: %s\n", p.Stage)
		}
		if p.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", p.Error)
		}
		if p.State != string(executor.StateSucceeded) && p.LogPath != "" {
			fmt.Fprintf(&b, "  Log: %s\n", p.LogPath)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Summary: %d successful, %d failed, %d skipped", r.Succeeded, r.Failed, r.Skipped)
	if r.Canceled > 0 {
		fmt.Fprintf(&b, ", %d canceled", r.Canceled)
	}
	b.WriteString("\n")
	return b.String()
}

// Persist writes build_report.json and build_report.txt atomically into dir.
// Best effort; errors are returned for caller logging but do not change the
// build outcome.
func (r *CellReport) Persist(dir string) error {
	if r.End.IsZero() {
		r.Finish()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}
	jb, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "build_report.json"), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "build_report.txt"), []byte(r.Text()))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename report file: %w", err)
	}
	return nil
}
