package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cxxpack/internal/config"
)

func TestRenderDockerfileApt(t *testing.T) {
	cell := config.Cell{System: "ubuntu22.04", Arch: "amd64"}
	sp := &config.SystemPackages{
		PackageManager: "apt",
		Packages:       []string{"build-essential", "cmake", "git"},
	}
	df, err := RenderDockerfile(cell, sp)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(df, "FROM ubuntu:22.04\n"))
	assert.Contains(t, df, "ENV DEBIAN_FRONTEND=noninteractive")
	assert.Contains(t, df, "RUN apt-get update")
	assert.Contains(t, df, "RUN apt-get install -y build-essential cmake git")
	assert.Contains(t, df, "RUN rm -rf /var/lib/apt/lists/*")
	assert.Contains(t, df, `CMD ["/usr/local/bin/cxxpack", "build", "--config", "/cxxpack/cxxpack.yaml", "--system", "ubuntu22.04", "--arch", "amd64"]`)
}

func TestRenderDockerfileYum(t *testing.T) {
	cell := config.Cell{System: "manylinux_2014", Arch: "arm64"}
	sp := &config.SystemPackages{PackageManager: "yum", Packages: []string{"gcc-c++", "cmake3"}}
	df, err := RenderDockerfile(cell, sp)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(df, "FROM dockcross/manylinux2014-aarch64\n"))
	assert.Contains(t, df, "RUN yum install -y gcc-c++ cmake3")
	assert.Contains(t, df, "RUN yum clean all")
	assert.NotContains(t, df, "DEBIAN_FRONTEND")
}

func TestRenderDockerfileBatchesInstalls(t *testing.T) {
	var pkgs []string
	for i := 0; i < 23; i++ {
		pkgs = append(pkgs, fmt.Sprintf("pkg%02d", i))
	}
	cell := config.Cell{System: "ubuntu20.04", Arch: "amd64"}
	df, err := RenderDockerfile(cell, &config.SystemPackages{PackageManager: "apt", Packages: pkgs})
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(df, "RUN apt-get install -y"))
	assert.Contains(t, df, "pkg22")
}

func TestRenderDockerfileDefaultsWithoutConfig(t *testing.T) {
	cell := config.Cell{System: "ubuntu22.04", Arch: "amd64"}
	df, err := RenderDockerfile(cell, nil)
	require.NoError(t, err)
	assert.Contains(t, df, "build-essential")
	assert.Contains(t, df, "cmake")
}

func TestRenderDockerfileUnknownManager(t *testing.T) {
	cell := config.Cell{System: "ubuntu22.04", Arch: "amd64"}
	_, err := RenderDockerfile(cell, &config.SystemPackages{PackageManager: "pacman"})
	require.Error(t, err)
}

func TestRenderDockerfileUnknownImage(t *testing.T) {
	_, err := RenderDockerfile(config.Cell{System: "freebsd13", Arch: "amd64"}, nil)
	require.Error(t, err)
}

type dockerCall struct {
	Name string
	Args []string
}

type fakeDocker struct {
	calls []dockerCall
	err   error
}

func (f *fakeDocker) Run(_ context.Context, _ string, _ []string, _ io.Writer, name string, args ...string) error {
	f.calls = append(f.calls, dockerCall{Name: name, Args: args})
	return f.err
}

func testEngine(t *testing.T, runner *fakeDocker) (*Engine, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cxxpack.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("packages: []\n"), 0o644))
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Output.Directory = filepath.Join(dir, "output")
	cfg.Output.LogsDir = filepath.Join(dir, "logs")

	e, err := NewEngine(Options{
		Config:     cfg,
		ConfigPath: cfgPath,
		Executable: filepath.Join(dir, "cxxpack"),
		Runner:     runner,
		Out:        io.Discard,
	})
	require.NoError(t, err)
	return e, cfg
}

func TestBuildImageInvokesDocker(t *testing.T) {
	runner := &fakeDocker{}
	e, _ := testEngine(t, runner)
	cell := config.Cell{System: "ubuntu22.04", Arch: "arm64"}

	require.NoError(t, e.BuildImage(context.Background(), cell))
	require.Len(t, runner.calls, 1)
	args := runner.calls[0].Args
	assert.Equal(t, "docker", runner.calls[0].Name)
	assert.Equal(t, "build", args[0])
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "--platform linux/arm64")
	assert.Contains(t, joined, "-t cxxpack-build-ubuntu22.04-arm64")
}

func TestRunCellMountsAndImage(t *testing.T) {
	runner := &fakeDocker{}
	e, cfg := testEngine(t, runner)
	cell := config.Cell{System: "ubuntu20.04", Arch: "amd64"}

	require.NoError(t, e.RunCell(context.Background(), cell))
	require.Len(t, runner.calls, 1)
	joined := strings.Join(runner.calls[0].Args, " ")

	assert.Contains(t, joined, "run --rm --platform linux/amd64")
	assert.Contains(t, joined, "target=/cxxpack/output")
	assert.Contains(t, joined, "target=/cxxpack/output_logs")
	assert.Contains(t, joined, "target=/usr/local/bin/cxxpack,readonly")
	assert.Contains(t, joined, "target=/cxxpack/cxxpack.yaml,readonly")
	assert.True(t, strings.HasSuffix(joined, "cxxpack-build-ubuntu20.04-amd64"))

	// per-cell host directories are created before the container starts
	assert.DirExists(t, filepath.Join(cfg.Output.Directory, "ubuntu20.04-amd64"))
	assert.DirExists(t, filepath.Join(cfg.Output.LogsDir, "ubuntu20.04-amd64"))
}

func TestRunCellForwardsProxyEnv(t *testing.T) {
	t.Setenv("http_proxy", "http://proxy.internal:3128")
	t.Setenv("HTTPS_PROXY", "http://proxy.internal:3128")

	runner := &fakeDocker{}
	e, _ := testEngine(t, runner)
	require.NoError(t, e.RunCell(context.Background(), config.Cell{System: "ubuntu22.04", Arch: "amd64"}))

	joined := strings.Join(runner.calls[0].Args, " ")
	assert.Contains(t, joined, "-e http_proxy=http://proxy.internal:3128")
	assert.Contains(t, joined, "-e HTTPS_PROXY=http://proxy.internal:3128")
}

func TestCleanupRemovesImage(t *testing.T) {
	runner := &fakeDocker{}
	e, _ := testEngine(t, runner)
	e.Cleanup(context.Background(), config.Cell{System: "ubuntu22.04", Arch: "amd64"})

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"rmi", "cxxpack-build-ubuntu22.04-amd64"}, runner.calls[0].Args)
}
