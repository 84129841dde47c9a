// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

type (
	// Runner runs an executable to completion and reports its exit code.
	// A non-nil error means the process could not be run at all.
	Runner interface {
		Run(ctx context.Context, path string, args, env []string) (int, error)
	}

	// ExecRunner runs the process with the given stdio, which the re-exec
	// path sets to the parent's own.
	ExecRunner struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewStdioRunner returns an ExecRunner wired to the process's stdio.
func NewStdioRunner() ExecRunner {
	return ExecRunner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run implements Runner. A child killed by a signal reports exit code 1.
func (r ExecRunner) Run(ctx context.Context, path string, args, env []string) (int, error) {
	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec // Runs the freshly activated ethos binary.
	cmd.Env = env
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return 0, nil
}
