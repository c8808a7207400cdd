package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CellStatus is the aggregate view of one cell within a matrix run.
type CellStatus struct {
	Cell       string `json:"cell"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	ReportPath string `json:"report_path,omitempty"`
}

// MatrixReport aggregates the outcomes of all cells in one matrix run.
type MatrixReport struct {
	SchemaVersion int          `json:"schema_version"`
	RunID         string       `json:"run_id"`
	Start         time.Time    `json:"start"`
	End           time.Time    `json:"end"`
	Cells         []CellStatus `json:"cells"`
	Success       bool         `json:"success"`
}

// NewMatrixReport starts an aggregate report for a matrix run.
func NewMatrixReport(runID string) *MatrixReport {
	return &MatrixReport{SchemaVersion: schemaVersion, RunID: runID, Start: time.Now()}
}

// AddCell records the outcome of one cell. err may be nil.
func (m *MatrixReport) AddCell(cell string, success bool, reportPath string, err error) {
	status := CellStatus{Cell: cell, Success: success, ReportPath: reportPath}
	if err != nil {
		status.Error = err.Error()
	}
	m.Cells = append(m.Cells, status)
}

// Finish stamps the end time and derives overall success.
func (m *MatrixReport) Finish() {
	m.End = time.Now()
	m.Success = true
	for _, c := range m.Cells {
		if !c.Success {
			m.Success = false
			return
		}
	}
}

// FailedCells returns the names of cells that did not succeed.
func (m *MatrixReport) FailedCells() []string {
	var failed []string
	for _, c := range m.Cells {
		if !c.Success {
			failed = append(failed, c.Cell)
		}
	}
	return failed
}

// Text renders the human readable matrix summary.
func (m *MatrixReport) Text() string {
	var b strings.Builder
	b.WriteString("Matrix Build Summary\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, c := range m.Cells {
		status := "SUCCESS"
		if !c.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "%s: %s\n", c.Cell, status)
		if c.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", c.Error)
		}
		if c.ReportPath != "" {
			fmt.Fprintf(&b, "  Report: %s\n", c.ReportPath)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Duration: %s\n", m.End.Sub(m.Start).Truncate(time.Millisecond))
	if m.Success {
		b.WriteString("All cells succeeded\n")
	} else {
		fmt.Fprintf(&b, "Failed cells: %s\n", strings.Join(m.FailedCells(), ", "))
	}
	return b.String()
}

// Persist writes build_summary.json and build_summary.txt atomically into dir.
func (m *MatrixReport) Persist(dir string) error {
	if m.End.IsZero() {
		m.Finish()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}
	jb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal matrix report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "build_summary.json"), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "build_summary.txt"), []byte(m.Text()))
}
