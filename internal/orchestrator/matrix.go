package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/cxxpack/internal/config"
	"git.home.luguber.info/inful/cxxpack/internal/logfields"
	"git.home.luguber.info/inful/cxxpack/internal/metrics"
	"git.home.luguber.info/inful/cxxpack/internal/report"
)

// CellExecutor isolates one cell's build. The real implementation is
// container.Engine; tests substitute fakes.
type CellExecutor interface {
	BuildImage(ctx context.Context, cell config.Cell) error
	RunCell(ctx context.Context, cell config.Cell) error
	Cleanup(ctx context.Context, cell config.Cell)
	CellOutputDir(cell config.Cell) string
}

// defaultCellParallelism bounds concurrent cell containers. Emulated cells
// are CPU-heavy; running everything at once mostly slows everything down.
const defaultCellParallelism = 2

// MatrixOptions configures a matrix run across containers.
type MatrixOptions struct {
	Config      *config.Config
	Cells       []config.Cell // defaults to the configured matrix
	RunID       string
	Engine      CellExecutor
	Recorder    metrics.Recorder
	Parallelism int
}

// RunMatrix builds every selected cell in its own container, in parallel up
// to the configured bound. One cell's failure never stops the others; the
// aggregate report records each cell's outcome and is persisted to the output
// directory.
func RunMatrix(ctx context.Context, opts MatrixOptions) (*report.MatrixReport, error) {
	cfg := opts.Config
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	cells := opts.Cells
	if len(cells) == 0 {
		cells = cfg.Matrix.Cells
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = defaultCellParallelism
	}

	baseTimeout := time.Duration(0)
	if cfg.Build.CellTimeout != "" {
		d, err := time.ParseDuration(cfg.Build.CellTimeout)
		if err != nil {
			slog.Warn("Invalid cell_timeout, running unbounded", logfields.Error(err))
		} else {
			baseTimeout = d
		}
	}

	slog.Info("Starting matrix build", logfields.RunID(runID), slog.Int("cells", len(cells)))

	cellErrs := make([]error, len(cells))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, cell := range cells {
		i, cell := i, cell
		g.Go(func() error {
			cellCtx := gctx
			if baseTimeout > 0 {
				timeout := baseTimeout
				if emulated(cell) {
					timeout *= time.Duration(cfg.Build.EmulationFactor)
				}
				var cancel context.CancelFunc
				cellCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}

			start := time.Now()
			err := runContainedCell(cellCtx, opts.Engine, cell)
			cellErrs[i] = err
			rec.ObserveCellDuration(cell.Name(), time.Since(start), err == nil)
			rec.IncCellOutcome(err == nil)
			if err != nil {
				slog.Error("Cell failed", logfields.Cell(cell.Name()), logfields.Error(err))
			} else {
				slog.Info("Cell succeeded", logfields.Cell(cell.Name()), logfields.Duration(time.Since(start)))
			}
			// cell failures are recorded, not propagated, so siblings keep running
			return nil
		})
	}
	_ = g.Wait()

	m := report.NewMatrixReport(runID)
	for i, cell := range cells {
		reportPath := ""
		if cellErrs[i] == nil {
			reportPath = filepath.Join(opts.Engine.CellOutputDir(cell), "build_report.json")
		}
		m.AddCell(cell.Name(), cellErrs[i] == nil, reportPath, cellErrs[i])
	}
	m.Finish()

	if err := m.Persist(cfg.Output.Directory); err != nil {
		slog.Warn("Failed to persist matrix report", logfields.Error(err))
	}
	return m, nil
}

func runContainedCell(ctx context.Context, eng CellExecutor, cell config.Cell) error {
	if err := eng.BuildImage(ctx, cell); err != nil {
		return err
	}
	defer eng.Cleanup(context.WithoutCancel(ctx), cell)
	return eng.RunCell(ctx, cell)
}

// emulated reports whether the cell's architecture differs from the host's,
// meaning the container runs under emulation and deserves a longer timeout.
func emulated(cell config.Cell) bool {
	return cell.Arch != runtime.GOARCH
}
