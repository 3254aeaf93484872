// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

type (
	// Runner executes Commands. Implementations block until the command
	// completes; there is no overlap between invocations from one caller.
	Runner interface {
		Run(ctx context.Context, cmd Command) Result
	}

	// ExecRunner runs Commands via os/exec. The zero value is ready to use.
	ExecRunner struct{}
)

// Compile-time interface check
var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates an os/exec backed Runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the Command and blocks until it finishes. A non-zero exit
// is reported through Result.ExitCode with a nil Err; Err is reserved for
// invocations that could not run at all (program missing, start failure).
func (r *ExecRunner) Run(ctx context.Context, cmd Command) Result {
	if err := cmd.Validate(); err != nil {
		return Result{ExitCode: 1, Err: err}
	}

	//nolint:gosec // Argv is a typed vector assembled by callers, not shell input.
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	c.Stdin = cmd.Stdin

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{ExitCode: ExitCode(exitErr.ExitCode())}
		}
		return Result{ExitCode: 1, Err: err}
	}
	return Result{ExitCode: 0}
}
