package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cxxpack/internal/config"
	"git.home.luguber.info/inful/cxxpack/internal/container"
	"git.home.luguber.info/inful/cxxpack/internal/metrics"
	"git.home.luguber.info/inful/cxxpack/internal/orchestrator"
	"git.home.luguber.info/inful/cxxpack/internal/resolver"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"cxxpack.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		System string `help:"Target system name (e.g. ubuntu22.04)" required:""`
		Arch   string `help:"Target architecture" default:"${default_arch}"`
		RunID  string `help:"Run identifier (defaults to a fresh UUID)"`
	} `cmd:"" help:"Build all packages for one cell on this host"`

	Matrix struct {
		System      []string `help:"Restrict to these systems (repeatable)"`
		Arch        []string `help:"Restrict to these architectures (repeatable)"`
		Parallelism int      `short:"p" help:"Concurrent cell containers" default:"2"`
		KeepImages  bool     `help:"Keep per-cell build images after the run"`
		RunID       string   `help:"Run identifier (defaults to a fresh UUID)"`
	} `cmd:"" help:"Build the full matrix in containers"`

	Resolve struct{} `cmd:"" help:"Print the computed build order and exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{"default_arch": runtime.GOARCH})

	switch ctx.Command() {
	case "build":
		cfg := mustLoadConfig()
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "matrix":
		cfg := mustLoadConfig()
		if err := runMatrix(cfg); err != nil {
			slog.Error("Matrix build failed", "error", err)
			os.Exit(1)
		}
	case "resolve":
		cfg := mustLoadConfig()
		if err := runResolve(cfg); err != nil {
			slog.Error("Resolve failed", "error", err)
			os.Exit(1)
		}
	case "init":
		setupLogging(config.LoggingConfig{}, CLI.Verbose)
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging, CLI.Verbose)
	return cfg
}

func setupLogging(lc config.LoggingConfig, verbose bool) {
	level := slog.LevelInfo
	switch config.NormalizeLogLevel(lc.Level) {
	case config.LogLevelDebug:
		level = slog.LevelDebug
	case config.LogLevelWarn:
		level = slog.LevelWarn
	case config.LogLevelError:
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if config.NormalizeLogFormat(lc.Format) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newRecorder returns the Prometheus-backed recorder on the default registry
// when metrics are enabled, otherwise the no-op recorder.
func newRecorder(cfg *config.Config) metrics.Recorder {
	if !cfg.Metrics.Enabled {
		return metrics.NoopRecorder{}
	}
	return metrics.NewPrometheusRecorder(nil)
}

func runBuild(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cell := config.Cell{System: CLI.Build.System, Arch: CLI.Build.Arch}
	rep, err := orchestrator.RunCell(ctx, orchestrator.CellOptions{
		Config:   cfg,
		Cell:     cell,
		RunID:    CLI.Build.RunID,
		Recorder: newRecorder(cfg),
	})
	if err != nil {
		return err
	}
	if !rep.Success {
		return fmt.Errorf("cell %s failed: %d failed, %d skipped (see %s)",
			cell.Name(), rep.Failed, rep.Skipped, cfg.Output.Directory)
	}
	return nil
}

func runMatrix(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cells := cfg.Matrix.Select(CLI.Matrix.System, CLI.Matrix.Arch)
	if len(cells) == 0 {
		return fmt.Errorf("no matrix cells match the given selectors")
	}

	engine, err := container.NewEngine(container.Options{
		Config:     cfg,
		ConfigPath: CLI.Config,
		KeepImages: CLI.Matrix.KeepImages,
	})
	if err != nil {
		return err
	}

	rep, err := orchestrator.RunMatrix(ctx, orchestrator.MatrixOptions{
		Config:      cfg,
		Cells:       cells,
		RunID:       CLI.Matrix.RunID,
		Engine:      engine,
		Recorder:    newRecorder(cfg),
		Parallelism: CLI.Matrix.Parallelism,
	})
	if err != nil {
		return err
	}
	if !rep.Success {
		fmt.Fprintf(os.Stderr, "Failed cells: %s\n", strings.Join(rep.FailedCells(), ", "))
		return fmt.Errorf("%d of %d cells failed", len(rep.FailedCells()), len(rep.Cells))
	}
	return nil
}

func runResolve(cfg *config.Config) error {
	order, err := resolver.Resolve(cfg.Packages)
	if err != nil {
		return err
	}
	for i, pkg := range order {
		deps := ""
		if len(pkg.Dependencies) > 0 {
			deps = " (after " + strings.Join(pkg.Dependencies, ", ") + ")"
		}
		fmt.Printf("%2d. %s%s\n", i+1, pkg.EffectiveName(), deps)
	}
	return nil
}
