package executor

import (
	"context"
	"io"
	"os/exec"
)

// CommandRunner abstracts external process execution so the build flow can be
// tested without a compiler toolchain installed.
type CommandRunner interface {
	Run(ctx context.Context, dir string, env []string, out io.Writer, name string, args ...string) error
}

type execRunner struct{}

// NewCommandRunner returns the exec-backed runner used outside of tests.
func NewCommandRunner() CommandRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, dir string, env []string, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
