// Package executor drives the per-package build lifecycle of a single matrix
// cell: clone with retry, configure, build, install into the cell's shared
// prefix. Build system detection mirrors what the packages themselves ship:
// CMakeLists.txt first, configure/autogen.sh second, CMake as the fallback.
package executor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"git.home.luguber.info/inful/cxxpack/internal/config"
	pkgerrors "git.home.luguber.info/inful/cxxpack/internal/errors"
	"git.home.luguber.info/inful/cxxpack/internal/logfields"
	"git.home.luguber.info/inful/cxxpack/internal/prefix"
	"git.home.luguber.info/inful/cxxpack/internal/workspace"
)

// Cloner fetches a package's source into dir, retrying transient failures.
type Cloner interface {
	Clone(ctx context.Context, pkg config.Package, dir string) (attempts int, err error)
}

const tailLines = 40

// Executor builds packages sequentially against one shared install prefix.
// It is not safe for concurrent use; packages within a cell share the prefix
// and must install in resolver order.
type Executor struct {
	cloner     Cloner
	runner     CommandRunner
	ws         *workspace.Manager
	prefix     *prefix.Prefix
	logsDir    string
	jobs       int
	cmakeNames map[string]string
	built      map[string]bool
}

// Options configures an Executor. Runner and Jobs default when zero.
type Options struct {
	Cloner    Cloner
	Runner    CommandRunner
	Workspace *workspace.Manager
	Prefix    *prefix.Prefix
	LogsDir   string
	Jobs      int
	Packages  []config.Package // full table, used for find_package name hints
}

// DefaultJobs caps make parallelism at 4; the large C++ packages mostly
// exhaust memory before they exhaust cores.
func DefaultJobs() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

func New(opts Options) *Executor {
	e := &Executor{
		cloner:     opts.Cloner,
		runner:     opts.Runner,
		ws:         opts.Workspace,
		prefix:     opts.Prefix,
		logsDir:    opts.LogsDir,
		jobs:       opts.Jobs,
		cmakeNames: make(map[string]string, len(opts.Packages)),
		built:      make(map[string]bool),
	}
	if e.runner == nil {
		e.runner = NewCommandRunner()
	}
	if e.jobs <= 0 {
		e.jobs = DefaultJobs()
	}
	for _, p := range opts.Packages {
		e.cmakeNames[p.EffectiveName()] = p.EffectiveCMakeName()
	}
	return e
}

// Build runs one package through the full lifecycle and reports the settled
// outcome. Dependencies are assumed to be installed already; the resolver
// order guarantees it.
func (e *Executor) Build(ctx context.Context, pkg config.Package) Result {
	name := pkg.EffectiveName()
	start := time.Now()
	res := Result{Package: name, State: StateCloning, Stage: StageClone}

	fail := func(stage Stage, tail *tailWriter, err error) Result {
		res.State = StateFailed
		res.Stage = stage
		res.Err = err
		res.Duration = time.Since(start)
		if tail != nil {
			res.OutputTail = tail.String()
		}
		slog.Error("Package build failed",
			logfields.Package(name), logfields.Stage(string(stage)), logfields.Error(err))
		return res
	}

	if err := os.MkdirAll(e.logsDir, 0o750); err != nil {
		return fail(StageClone, nil,
			pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to create log directory"))
	}
	logPath := filepath.Join(e.logsDir, name+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fail(StageClone, nil,
			pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to create build log"))
	}
	defer func() { _ = logFile.Close() }()
	res.LogPath = logPath

	tail := newTailWriter(tailLines)
	out := io.MultiWriter(logFile, tail)

	srcDir, err := e.ws.SourceDir(name)
	if err != nil {
		return fail(StageClone, tail,
			pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to prepare source directory"))
	}

	slog.Info("Cloning package",
		logfields.Package(name), logfields.URL(pkg.URL), logfields.Revision(pkg.Revision))
	attempts, err := e.cloner.Clone(ctx, pkg, srcDir)
	res.CloneAttempts = attempts
	if err != nil {
		return fail(StageClone, tail, err)
	}

	switch {
	case pkg.HasCustomCommand():
		res.State = StateBuilding
		res.Stage = StageCustom
		cmd := pkg.RenderCustomCommand(e.prefix.Root(), e.jobs)
		slog.Info("Running custom build command", logfields.Package(name))
		if err := e.runner.Run(ctx, srcDir, nil, out, "sh", "-c", cmd); err != nil {
			return fail(StageCustom, tail,
				pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "custom build command failed"))
		}
	case !isCMakeProject(srcDir) && isAutotoolsProject(srcDir):
		if stage, err := e.buildAutotools(ctx, &res, pkg, srcDir, out); err != nil {
			return fail(stage, tail, err)
		}
	default:
		// unknown layouts go through CMake as the most likely candidate
		if stage, err := e.buildCMake(ctx, &res, pkg, srcDir, out); err != nil {
			return fail(stage, tail, err)
		}
	}

	e.built[name] = true
	res.State = StateSucceeded
	res.Duration = time.Since(start)
	slog.Info("Package installed", logfields.Package(name), logfields.Duration(res.Duration))
	return res
}

func (e *Executor) buildCMake(ctx context.Context, res *Result, pkg config.Package, srcDir string, out io.Writer) (Stage, error) {
	buildDir := filepath.Join(srcDir, "build")
	if err := os.MkdirAll(buildDir, 0o750); err != nil {
		return StageConfigure,
			pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to create build directory")
	}

	res.State = StateConfiguring
	res.Stage = StageConfigure
	args := append([]string{".."}, cmakeArgs(pkg, e.prefix, e.depHints(pkg))...)
	if err := e.runner.Run(ctx, buildDir, nil, out, "cmake", args...); err != nil {
		return StageConfigure,
			pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "cmake configure failed")
	}

	res.State = StateBuilding
	res.Stage = StageBuild
	if err := e.runner.Run(ctx, buildDir, nil, out, "make", "-j"+strconv.Itoa(e.jobs)); err != nil {
		return StageBuild,
			pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "build failed")
	}

	res.State = StateInstalling
	res.Stage = StageInstall
	if err := e.runner.Run(ctx, buildDir, nil, out, "make", "install"); err != nil {
		return StageInstall,
			pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "install failed")
	}
	return StageInstall, nil
}

func (e *Executor) buildAutotools(ctx context.Context, res *Result, pkg config.Package, srcDir string, out io.Writer) (Stage, error) {
	res.State = StateConfiguring
	res.Stage = StageConfigure

	switch {
	case fileExists(filepath.Join(srcDir, "autogen.sh")):
		if err := e.runner.Run(ctx, srcDir, nil, out, "sh", "./autogen.sh"); err != nil {
			return StageConfigure,
				pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "autogen.sh failed")
		}
	case fileExists(filepath.Join(srcDir, "configure.ac")) || fileExists(filepath.Join(srcDir, "configure.in")):
		if err := e.runner.Run(ctx, srcDir, nil, out, "autoreconf", "-fiv"); err != nil {
			return StageConfigure,
				pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "autoreconf failed")
		}
	}

	env := autotoolsEnv(pkg, e.prefix, os.Environ())
	if err := e.runner.Run(ctx, srcDir, env, out, "./configure", "--prefix="+e.prefix.Root()); err != nil {
		return StageConfigure,
			pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "configure failed")
	}

	res.State = StateBuilding
	res.Stage = StageBuild
	if err := e.runner.Run(ctx, srcDir, nil, out, "make", "-j"+strconv.Itoa(e.jobs)); err != nil {
		return StageBuild,
			pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "build failed")
	}

	res.State = StateInstalling
	res.Stage = StageInstall
	if err := e.runner.Run(ctx, srcDir, nil, out, "make", "install"); err != nil {
		return StageInstall,
			pkgerrors.Wrap(err, pkgerrors.CategoryBuild, pkgerrors.SeverityError, "install failed")
	}
	return StageInstall, nil
}

// depHints returns find_package hints for dependencies installed earlier in
// this cell. Dependencies that have not been installed are left to CMake's
// own search paths.
func (e *Executor) depHints(pkg config.Package) []depHint {
	var hints []depHint
	for _, dep := range pkg.Dependencies {
		if !e.built[dep] {
			continue
		}
		cm := e.cmakeNames[dep]
		if cm == "" {
			cm = dep
		}
		hints = append(hints, depHint{Name: dep, CMakeName: cm})
	}
	return hints
}

func isCMakeProject(dir string) bool {
	return fileExists(filepath.Join(dir, "CMakeLists.txt"))
}

func isAutotoolsProject(dir string) bool {
	return fileExists(filepath.Join(dir, "configure")) || fileExists(filepath.Join(dir, "autogen.sh"))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
