// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"forgeenv-cli/internal/execute"
)

// ScriptRunner executes inline plan scripts in the embedded POSIX
// shell interpreter. No host shell is involved, so script steps behave
// the same on every platform.
type ScriptRunner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewScriptRunner creates a script runner writing to the given streams.
func NewScriptRunner(stdin io.Reader, stdout, stderr io.Writer) *ScriptRunner {
	return &ScriptRunner{stdin: stdin, stdout: stdout, stderr: stderr}
}

// CheckSyntax parses the script without running it. Plans with
// malformed scripts fail before any step executes.
func (r *ScriptRunner) CheckSyntax(script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "script"); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}

	return nil
}

// Run executes the script with the given working directory and
// environment. A non-zero script exit status is reported as an error
// carrying the exit code.
func (r *ScriptRunner) Run(ctx context.Context, script, dir string, environ []string) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
	if err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(r.stdin, r.stdout, r.stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &execute.UnexpectedExitError{Code: execute.ExitCode(exitStatus)}
		}

		return fmt.Errorf("script execution failed: %w", err)
	}

	return nil
}
