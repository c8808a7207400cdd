package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cxxpack/internal/config"
	"git.home.luguber.info/inful/cxxpack/internal/prefix"
	"git.home.luguber.info/inful/cxxpack/internal/workspace"
)

type recordedCommand struct {
	Dir  string
	Name string
	Args []string
}

// fakeRunner records commands and fails those matching failOn.
type fakeRunner struct {
	commands []recordedCommand
	failOn   string // command name (or "sh" script fragment) to fail
	output   string // written to out before returning
}

func (f *fakeRunner) Run(_ context.Context, dir string, _ []string, out io.Writer, name string, args ...string) error {
	f.commands = append(f.commands, recordedCommand{Dir: dir, Name: name, Args: args})
	if f.output != "" {
		fmt.Fprintln(out, f.output)
	}
	if f.failOn != "" && (name == f.failOn || (name == "sh" && strings.Contains(strings.Join(args, " "), f.failOn))) {
		return errors.New("exit status 1")
	}
	return nil
}

// fakeCloner materializes the given files into the target directory.
type fakeCloner struct {
	files    map[string]string
	attempts int
	err      error
}

func (f *fakeCloner) Clone(_ context.Context, _ config.Package, dir string) (int, error) {
	if f.err != nil {
		return f.attempts, f.err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return f.attempts, err
	}
	for name, content := range f.files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return f.attempts, err
		}
	}
	return f.attempts, nil
}

func newTestExecutor(t *testing.T, cloner Cloner, runner CommandRunner, pkgs []config.Package) (*Executor, *prefix.Prefix) {
	t.Helper()
	ws := workspace.NewManager(t.TempDir())
	require.NoError(t, ws.Create())
	t.Cleanup(func() { _ = ws.Cleanup() })

	pfx, err := prefix.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, pfx.Ensure())

	return New(Options{
		Cloner:    cloner,
		Runner:    runner,
		Workspace: ws,
		Prefix:    pfx,
		LogsDir:   t.TempDir(),
		Jobs:      2,
		Packages:  pkgs,
	}), pfx
}

func TestBuildCMakeSuccess(t *testing.T) {
	runner := &fakeRunner{}
	cloner := &fakeCloner{files: map[string]string{"CMakeLists.txt": "project(glog)"}, attempts: 1}
	pkg := config.Package{URL: "https://github.com/google/glog.git", Revision: "v0.6.0"}
	e, _ := newTestExecutor(t, cloner, runner, []config.Package{pkg})

	res := e.Build(context.Background(), pkg)
	require.NoError(t, res.Err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, 1, res.CloneAttempts)
	assert.True(t, res.Succeeded())

	require.Len(t, runner.commands, 3)
	assert.Equal(t, "cmake", runner.commands[0].Name)
	assert.Equal(t, "make", runner.commands[1].Name)
	assert.Equal(t, []string{"-j2"}, runner.commands[1].Args)
	assert.Equal(t, []string{"install"}, runner.commands[2].Args)
	assert.True(t, strings.HasSuffix(runner.commands[0].Dir, filepath.Join("glog", "build")))
}

func TestBuildPassesDependencyHintsOnlyForInstalledDeps(t *testing.T) {
	runner := &fakeRunner{}
	cloner := &fakeCloner{files: map[string]string{"CMakeLists.txt": ""}, attempts: 1}
	protobuf := config.Package{URL: "https://github.com/protocolbuffers/protobuf.git", CMakeName: "Protobuf"}
	grpc := config.Package{URL: "https://github.com/grpc/grpc.git", Dependencies: []string{"protobuf"}}
	e, pfx := newTestExecutor(t, cloner, runner, []config.Package{protobuf, grpc})

	require.Equal(t, StateSucceeded, e.Build(context.Background(), protobuf).State)
	require.Equal(t, StateSucceeded, e.Build(context.Background(), grpc).State)

	grpcConfigure := runner.commands[3]
	require.Equal(t, "cmake", grpcConfigure.Name)
	joined := strings.Join(grpcConfigure.Args, " ")
	assert.Contains(t, joined, "-DProtobuf_DIR="+pfx.Root())
	assert.Contains(t, joined, "-Dprotobuf_ROOT="+pfx.Root())
	assert.Contains(t, joined, "-DPROTOBUF_ROOT="+pfx.Root())
	assert.Contains(t, joined, "-DCMAKE_PREFIX_PATH=")
}

func TestBuildCustomCommandSubstitutesPlaceholders(t *testing.T) {
	runner := &fakeRunner{}
	cloner := &fakeCloner{files: map[string]string{"bootstrap.sh": ""}, attempts: 1}
	pkg := config.Package{
		Name:          "boost_full",
		URL:           "https://github.com/boostorg/boost.git",
		CustomCommand: "./bootstrap.sh && ./b2 install --prefix={install_prefix} -j{cpu_count}",
	}
	e, pfx := newTestExecutor(t, cloner, runner, []config.Package{pkg})

	res := e.Build(context.Background(), pkg)
	require.Equal(t, StateSucceeded, res.State)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "sh", runner.commands[0].Name)
	script := runner.commands[0].Args[1]
	assert.Contains(t, script, "--prefix="+pfx.Root())
	assert.Contains(t, script, "-j2")
	assert.NotContains(t, script, "{install_prefix}")
}

func TestBuildCustomCommandFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "b2", output: "error: b2 exploded"}
	cloner := &fakeCloner{files: map[string]string{}, attempts: 1}
	pkg := config.Package{Name: "boost_full", URL: "x", CustomCommand: "./b2 install"}
	e, _ := newTestExecutor(t, cloner, runner, []config.Package{pkg})

	res := e.Build(context.Background(), pkg)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StageCustom, res.Stage)
	require.Error(t, res.Err)
	assert.Contains(t, res.OutputTail, "b2 exploded")

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "b2 exploded")
}

func TestBuildRecordsFailureStage(t *testing.T) {
	cases := []struct {
		name   string
		failOn string
		stage  Stage
		state  State
	}{
		{"configure", "cmake", StageConfigure, StateFailed},
		{"build", "make", StageBuild, StateFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{failOn: tc.failOn}
			cloner := &fakeCloner{files: map[string]string{"CMakeLists.txt": ""}, attempts: 1}
			pkg := config.Package{Name: "jsoncpp", URL: "x"}
			e, _ := newTestExecutor(t, cloner, runner, []config.Package{pkg})

			res := e.Build(context.Background(), pkg)
			assert.Equal(t, tc.state, res.State)
			assert.Equal(t, tc.stage, res.Stage)
			require.Error(t, res.Err)
		})
	}
}

func TestBuildCloneFailure(t *testing.T) {
	runner := &fakeRunner{}
	cloner := &fakeCloner{attempts: 3, err: errors.New("clone failed after 3 attempts")}
	pkg := config.Package{Name: "glog", URL: "x"}
	e, _ := newTestExecutor(t, cloner, runner, []config.Package{pkg})

	res := e.Build(context.Background(), pkg)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StageClone, res.Stage)
	assert.Equal(t, 3, res.CloneAttempts)
	assert.Empty(t, runner.commands)
}

func TestBuildAutotoolsProject(t *testing.T) {
	runner := &fakeRunner{}
	cloner := &fakeCloner{files: map[string]string{"configure": "#!/bin/sh"}, attempts: 1}
	pkg := config.Package{Name: "zlib-like", URL: "x"}
	e, pfx := newTestExecutor(t, cloner, runner, []config.Package{pkg})

	res := e.Build(context.Background(), pkg)
	require.Equal(t, StateSucceeded, res.State)

	require.Len(t, runner.commands, 3)
	assert.Equal(t, "./configure", runner.commands[0].Name)
	assert.Equal(t, []string{"--prefix=" + pfx.Root()}, runner.commands[0].Args)
	assert.Equal(t, "make", runner.commands[1].Name)
}

func TestBuildUnknownLayoutFallsBackToCMake(t *testing.T) {
	runner := &fakeRunner{}
	cloner := &fakeCloner{files: map[string]string{"README.md": ""}, attempts: 1}
	pkg := config.Package{Name: "mystery", URL: "x"}
	e, _ := newTestExecutor(t, cloner, runner, []config.Package{pkg})

	res := e.Build(context.Background(), pkg)
	require.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "cmake", runner.commands[0].Name)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateSkipped.Terminal())
	assert.True(t, StateCanceled.Terminal())
	assert.False(t, StateBuilding.Terminal())
	assert.False(t, StatePending.Terminal())
}
