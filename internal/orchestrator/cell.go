// Package orchestrator coordinates build runs: a single cell on the host
// (resolve, build each package in order, propagate failures, report) and the
// full matrix across containers.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cxxpack/internal/archive"
	"git.home.luguber.info/inful/cxxpack/internal/config"
	pkgerrors "git.home.luguber.info/inful/cxxpack/internal/errors"
	"git.home.luguber.info/inful/cxxpack/internal/executor"
	"git.home.luguber.info/inful/cxxpack/internal/gitclient"
	"git.home.luguber.info/inful/cxxpack/internal/logfields"
	"git.home.luguber.info/inful/cxxpack/internal/metrics"
	"git.home.luguber.info/inful/cxxpack/internal/prefix"
	"git.home.luguber.info/inful/cxxpack/internal/report"
	"git.home.luguber.info/inful/cxxpack/internal/resolver"
	"git.home.luguber.info/inful/cxxpack/internal/retry"
	"git.home.luguber.info/inful/cxxpack/internal/workspace"
)

// PackageBuilder is the per-package build entry point. The real implementation
// is executor.Executor; tests substitute fakes.
type PackageBuilder interface {
	Build(ctx context.Context, pkg config.Package) executor.Result
}

// CellOptions configures a single-cell run. Builder and Recorder default when
// nil; RunID defaults to a fresh UUID.
type CellOptions struct {
	Config   *config.Config
	Cell     config.Cell
	RunID    string
	Builder  PackageBuilder
	Recorder metrics.Recorder
}

// RunCell executes every configured package for one cell in resolver order.
// A package failure marks its transitive dependents skipped without invoking
// them; unrelated packages continue. The returned report is also persisted to
// the configured output directory. An error is returned only for plan-level
// problems (resolution, workspace setup), never for package build failures.
func RunCell(ctx context.Context, opts CellOptions) (*report.CellReport, error) {
	cfg := opts.Config
	cell := opts.Cell
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	order, err := resolver.Resolve(cfg.Packages)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CategoryResolve, pkgerrors.SeverityFatal, "dependency resolution failed")
	}

	builder := opts.Builder
	if builder == nil {
		var cleanup func()
		builder, cleanup, err = newExecutorBuilder(cfg)
		if err != nil {
			return nil, err
		}
		defer cleanup()
	}

	slog.Info("Starting cell build",
		logfields.RunID(runID), logfields.System(cell.System), logfields.Arch(cell.Arch),
		slog.Int("packages", len(order)))

	rep := report.NewCellReport(runID, cell.System, cell.Arch)
	skipped := make(map[string]string) // package -> failed package blocking it
	start := time.Now()

	for _, pkg := range order {
		name := pkg.EffectiveName()

		if blockedBy, ok := skipped[name]; ok {
			res := executor.Result{
				Package: name,
				State:   executor.StateSkipped,
				Err:     fmt.Errorf("skipped: dependency %s failed", blockedBy),
			}
			rep.Add(res)
			rec.IncPackageOutcome(string(executor.StateSkipped))
			slog.Warn("Skipping package",
				logfields.Package(name), logfields.State(string(executor.StateSkipped)),
				slog.String("blocked_by", blockedBy))
			continue
		}
		if err := ctx.Err(); err != nil {
			res := executor.Result{
				Package: name,
				State:   executor.StateCanceled,
				Err:     fmt.Errorf("run canceled before build: %w", err),
			}
			rep.Add(res)
			rec.IncPackageOutcome(string(executor.StateCanceled))
			continue
		}

		res := builder.Build(ctx, pkg)
		rep.Add(res)
		rec.ObservePackageDuration(name, string(res.Stage), res.Duration)
		rec.IncPackageOutcome(string(res.State))
		for i := 1; i < res.CloneAttempts; i++ {
			rec.IncCloneRetry(name)
		}

		if res.State == executor.StateFailed {
			for dependent := range resolver.Dependents(order, name) {
				if _, already := skipped[dependent]; !already {
					skipped[dependent] = name
				}
			}
		}
	}

	rep.Finish()
	rec.ObserveCellDuration(cell.Name(), time.Since(start), rep.Success)
	rec.IncCellOutcome(rep.Success)

	if err := rep.Persist(cfg.Output.Directory); err != nil {
		slog.Warn("Failed to persist cell report", logfields.Error(err))
	}
	if rep.Success {
		archivePath := filepath.Join(cfg.Output.Directory, archive.Name(cell))
		if sum, err := archive.Create(cfg.Output.Directory, archivePath); err != nil {
			slog.Warn("Failed to archive install prefix", logfields.Error(err))
		} else if err := archive.Verify(archivePath); err != nil {
			slog.Warn("Archive failed verification", logfields.Path(archivePath), logfields.Error(err))
		} else {
			slog.Info("Archived install prefix", logfields.Path(archivePath), slog.String("sha256", sum))
		}
	}

	slog.Info("Cell build finished",
		logfields.RunID(runID), logfields.Cell(cell.Name()),
		slog.Int("succeeded", rep.Succeeded), slog.Int("failed", rep.Failed),
		slog.Int("skipped", rep.Skipped), slog.Int("canceled", rep.Canceled))
	return rep, nil
}

// newExecutorBuilder assembles the real build pipeline: an ephemeral
// workspace, the shared install prefix and a retrying git cloner.
func newExecutorBuilder(cfg *config.Config) (PackageBuilder, func(), error) {
	pfx, err := prefix.New(cfg.Output.Directory)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityFatal, "invalid install prefix")
	}
	if err := pfx.Ensure(); err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityFatal, "failed to create install prefix")
	}

	ws := workspace.NewManager("")
	if err := ws.Create(); err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityFatal, "failed to create workspace")
	}
	cleanup := func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}

	exec := executor.New(executor.Options{
		Cloner:    gitclient.New(retry.FromBuildConfig(cfg.Build)),
		Workspace: ws,
		Prefix:    pfx,
		LogsDir:   cfg.Output.LogsDir,
		Jobs:      cfg.Build.Jobs,
		Packages:  cfg.Packages,
	})
	return exec, cleanup, nil
}
