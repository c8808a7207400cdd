// Package container isolates matrix cells in docker containers: one image per
// cell carrying the system prerequisites, one run per cell with the host's
// output and log directories bind-mounted. Non-native architectures run under
// the engine's emulation; only timeouts change, never build semantics.
package container

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/cxxpack/internal/config"
	pkgerrors "git.home.luguber.info/inful/cxxpack/internal/errors"
	"git.home.luguber.info/inful/cxxpack/internal/executor"
	"git.home.luguber.info/inful/cxxpack/internal/logfields"
)

// proxyVars are forwarded from the host into build containers when set, so
// clones and package installs work behind corporate proxies.
var proxyVars = []string{
	"http_proxy", "https_proxy", "ftp_proxy", "no_proxy",
	"HTTP_PROXY", "HTTPS_PROXY", "FTP_PROXY", "NO_PROXY",
}

const containerWorkdir = "/cxxpack"

// Engine drives docker to build per-cell images and run isolated cell builds.
type Engine struct {
	cfg        *config.Config
	configPath string
	executable string // cxxpack binary mounted into the container
	runner     executor.CommandRunner
	out        io.Writer
	keepImages bool
}

// Options configures an Engine. Runner, Executable and Out default when zero.
type Options struct {
	Config     *config.Config
	ConfigPath string
	Executable string
	Runner     executor.CommandRunner
	Out        io.Writer
	KeepImages bool
}

func NewEngine(opts Options) (*Engine, error) {
	e := &Engine{
		cfg:        opts.Config,
		configPath: opts.ConfigPath,
		executable: opts.Executable,
		runner:     opts.Runner,
		out:        opts.Out,
		keepImages: opts.KeepImages,
	}
	if e.runner == nil {
		e.runner = executor.NewCommandRunner()
	}
	if e.out == nil {
		e.out = os.Stderr
	}
	if e.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CategoryRuntime, pkgerrors.SeverityFatal, "cannot locate own executable for container mount")
		}
		e.executable = exe
	}
	return e, nil
}

// ImageName returns the per-cell image tag.
func (e *Engine) ImageName(cell config.Cell) string {
	return "cxxpack-build-" + cell.Name()
}

// BuildImage renders the cell's Dockerfile and builds the image for the
// cell's platform.
func (e *Engine) BuildImage(ctx context.Context, cell config.Cell) error {
	dockerfile, err := RenderDockerfile(cell, e.cfg.SystemPackagesFor(cell.System))
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryContainer, pkgerrors.SeverityError, "failed to render Dockerfile")
	}

	ctxDir, err := os.MkdirTemp("", "cxxpack-image-")
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to create image build context")
	}
	defer func() { _ = os.RemoveAll(ctxDir) }()

	if err := os.WriteFile(filepath.Join(ctxDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to write Dockerfile")
	}

	slog.Info("Building build image",
		logfields.Cell(cell.Name()), slog.String("image", e.ImageName(cell)), slog.String("platform", cell.Platform()))
	args := []string{"build", "--platform", cell.Platform(), "-t", e.ImageName(cell), ctxDir}
	if err := e.runner.Run(ctx, "", nil, e.out, "docker", args...); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryContainer, pkgerrors.SeverityError, "docker build failed")
	}
	return nil
}

// RunCell executes one cell's build inside its container, bind-mounting the
// per-cell output and log directories plus the cxxpack binary and config.
func (e *Engine) RunCell(ctx context.Context, cell config.Cell) error {
	outDir, logsDir, err := e.ensureCellDirs(cell)
	if err != nil {
		return err
	}
	configAbs, err := filepath.Abs(e.configPath)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to resolve config path")
	}

	args := []string{"run", "--rm", "--platform", cell.Platform()}
	for _, kv := range proxyEnv() {
		args = append(args, "-e", kv)
	}
	args = append(args,
		"--mount", bindMount(outDir, containerWorkdir+"/output"),
		"--mount", bindMount(logsDir, containerWorkdir+"/output_logs"),
		"--mount", bindMount(e.executable, "/usr/local/bin/cxxpack")+",readonly",
		"--mount", bindMount(configAbs, containerWorkdir+"/cxxpack.yaml")+",readonly",
		e.ImageName(cell),
	)

	slog.Info("Running cell container", logfields.Cell(cell.Name()), logfields.Path(outDir))
	if err := e.runner.Run(ctx, "", nil, e.out, "docker", args...); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryContainer, pkgerrors.SeverityError,
			fmt.Sprintf("cell container for %s failed", cell.Name()))
	}
	return nil
}

// Cleanup removes the cell's image unless image retention was requested.
// Best effort: failures are logged, not returned.
func (e *Engine) Cleanup(ctx context.Context, cell config.Cell) {
	if e.keepImages {
		return
	}
	if err := e.runner.Run(ctx, "", nil, io.Discard, "docker", "rmi", e.ImageName(cell)); err != nil {
		slog.Debug("Failed to remove build image", logfields.Cell(cell.Name()), logfields.Error(err))
	}
}

// CellOutputDir returns the host directory a cell's artifacts land in.
func (e *Engine) CellOutputDir(cell config.Cell) string {
	return filepath.Join(e.cfg.Output.Directory, cell.Name())
}

// CellLogsDir returns the host directory a cell's build logs land in.
func (e *Engine) CellLogsDir(cell config.Cell) string {
	return filepath.Join(e.cfg.Output.LogsDir, cell.Name())
}

func (e *Engine) ensureCellDirs(cell config.Cell) (outDir, logsDir string, err error) {
	outDir, err = filepath.Abs(e.CellOutputDir(cell))
	if err == nil {
		logsDir, err = filepath.Abs(e.CellLogsDir(cell))
	}
	if err != nil {
		return "", "", pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to resolve cell directories")
	}
	for _, d := range []string{outDir, logsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", "", pkgerrors.Wrap(err, pkgerrors.CategoryFileSystem, pkgerrors.SeverityError, "failed to create cell directory")
		}
	}
	return outDir, logsDir, nil
}

func bindMount(source, target string) string {
	return fmt.Sprintf("type=bind,source=%s,target=%s", source, target)
}

func proxyEnv() []string {
	var out []string
	for _, name := range proxyVars {
		if v := os.Getenv(name); v != "" {
			out = append(out, name+"="+v)
		}
	}
	// dedupe case variants pointing at the same value
	seen := make(map[string]bool, len(out))
	var uniq []string
	for _, kv := range out {
		key := strings.ToLower(kv)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, kv)
	}
	return uniq
}
