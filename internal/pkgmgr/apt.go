// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"forgeenv-cli/internal/execute"
)

// ErrNoPackages is returned when an install is requested with an empty package list.
var ErrNoPackages = errors.New("no packages to install")

//nolint:gochecknoglobals // Test seam for exec.LookPath().
var lookPath = exec.LookPath

type (
	// Manager installs OS packages. Implementations must be safe for
	// strictly sequential use; provisioning never overlaps invocations.
	Manager interface {
		// Available reports whether the package manager exists on this system.
		Available() bool

		// Update refreshes the package index.
		Update(ctx context.Context) error

		// Install installs the given packages, tolerating already-installed ones.
		Install(ctx context.Context, packages []string) error
	}

	// Apt is the Debian/Ubuntu package manager.
	Apt struct {
		runner execute.Runner

		// stdout receives apt's progress output. Defaults to discard;
		// the provisioner points it at stderr so captured step output
		// stays clean.
		stdout io.Writer
		stderr io.Writer
	}

	// AptOption configures an Apt during construction.
	AptOption func(*Apt)
)

// Compile-time interface check
var _ Manager = (*Apt)(nil)

// WithRunner overrides the command runner. Test seam.
func WithRunner(r execute.Runner) AptOption {
	return func(a *Apt) {
		a.runner = r
	}
}

// WithOutput directs apt's stdout and stderr to the given writers.
func WithOutput(stdout, stderr io.Writer) AptOption {
	return func(a *Apt) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// NewApt creates an apt-backed Manager.
func NewApt(opts ...AptOption) *Apt {
	a := &Apt{
		runner: execute.NewExecRunner(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether apt-get is on PATH.
func (a *Apt) Available() bool {
	_, err := lookPath("apt-get")
	return err == nil
}

// Update runs `apt-get update`.
func (a *Apt) Update(ctx context.Context) error {
	cmd := a.command("update")
	result := a.runner.Run(ctx, cmd)
	if err := result.AsError(cmd); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	return nil
}

// Install runs `apt-get install` for the given packages. Recommended
// packages are skipped to keep build images lean; apt treats packages
// that are already installed as a no-op.
func (a *Apt) Install(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		return ErrNoPackages
	}

	args := append([]string{"install", "--yes", "--no-install-recommends"}, packages...)
	cmd := a.command(args...)
	result := a.runner.Run(ctx, cmd)
	if err := result.AsError(cmd); err != nil {
		return fmt.Errorf("apt-get install: %w", err)
	}
	return nil
}

// command assembles an apt-get invocation with the non-interactive
// frontend forced, so a missing debconf terminal can never hang a run.
func (a *Apt) command(args ...string) execute.Command {
	return execute.Command{
		Argv:   append([]string{"apt-get"}, args...),
		Env:    []string{"DEBIAN_FRONTEND=noninteractive"},
		Stdout: a.stdout,
		Stderr: a.stderr,
	}
}
