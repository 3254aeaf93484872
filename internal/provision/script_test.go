// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"forgeenv-cli/internal/execute"
)

func TestScriptRunnerRun(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	r := NewScriptRunner(nil, &stdout, &stderr)

	err := r.Run(context.Background(), `printf 'hello from %s' "$TOOL"`, t.TempDir(), []string{"TOOL=forge"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := stdout.String(); got != "hello from forge" {
		t.Errorf("stdout = %q", got)
	}
}

func TestScriptRunnerWorkingDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var stdout bytes.Buffer
	r := NewScriptRunner(nil, &stdout, &stdout)

	if err := r.Run(context.Background(), "pwd", dir, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := strings.TrimSpace(stdout.String()); got != dir {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestScriptRunnerExitStatus(t *testing.T) {
	t.Parallel()

	r := NewScriptRunner(nil, nil, nil)

	err := r.Run(context.Background(), "exit 3", t.TempDir(), nil)

	var exitErr *execute.UnexpectedExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("got %v, want UnexpectedExitError", err)
	}

	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
}

func TestScriptRunnerCheckSyntax(t *testing.T) {
	t.Parallel()

	r := NewScriptRunner(nil, nil, nil)

	if err := r.CheckSyntax("echo ok"); err != nil {
		t.Errorf("valid script rejected: %v", err)
	}

	if err := r.CheckSyntax("if true; then"); err == nil {
		t.Error("unterminated if accepted")
	}
}
