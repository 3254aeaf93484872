// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyCommand is returned when a Command has no argument vector.
var ErrEmptyCommand = errors.New("command has no argument vector")

type (
	// Command is an opaque external operation: an argument vector plus
	// structured options. The first Argv element is the program to run;
	// the rest are passed verbatim, with no shell evaluation in between.
	Command struct {
		// Argv is the program and its arguments. Must not be empty.
		Argv []string

		// Dir is the working directory. Empty means the caller's cwd.
		Dir string

		// Env are additional KEY=VALUE pairs appended to the inherited
		// process environment for this invocation only.
		Env []string

		// Stdout receives the command's standard output. Nil discards it.
		// Retry and step diagnostics never write here.
		Stdout io.Writer

		// Stderr receives the command's standard error. Nil discards it.
		Stderr io.Writer

		// Stdin feeds the command's standard input. Nil means no input.
		Stdin io.Reader
	}

	// Result carries the observed outcome of one Command invocation.
	Result struct {
		ExitCode ExitCode

		// Err is set when the command could not be started or was
		// terminated abnormally; a plain non-zero exit leaves Err nil.
		Err error
	}
)

// Validate checks that the Command is runnable.
func (c Command) Validate() error {
	if len(c.Argv) == 0 {
		return ErrEmptyCommand
	}
	if c.Argv[0] == "" {
		return fmt.Errorf("%w: empty program name", ErrEmptyCommand)
	}
	return nil
}

// Program returns the program name, or "" for an empty Command.
func (c Command) Program() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// String renders the argv for diagnostics. Arguments containing spaces are
// quoted for readability only; the rendered form is never executed.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Argv))
	for _, a := range c.Argv {
		if strings.ContainsAny(a, " \t\n") {
			parts = append(parts, fmt.Sprintf("%q", a))
		} else {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// Success reports whether the invocation ran and exited zero.
func (r Result) Success() bool { return r.Err == nil && r.ExitCode.IsSuccess() }

// AsError converts a failed Result into an error, or nil for success.
func (r Result) AsError(cmd Command) error {
	if r.Success() {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return fmt.Errorf("%s exited with code %s", cmd.Program(), r.ExitCode)
}
