// SPDX-License-Identifier: MPL-2.0

package retry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// newTestExecutor returns an executor with a counting fake sleep and a logger
// writing into the returned buffer, so tests never block on real delays.
func newTestExecutor(t *testing.T, p Policy, sleeps *int) (*Executor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewExecutor(
		WithPolicy(p),
		WithLogger(log.New(&buf)),
		WithSleep(func(time.Duration) { *sleeps++ }),
	), &buf
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, _ := newTestExecutor(t, Policy{Attempts: 5, Delay: 15 * time.Second}, &sleeps)

	calls := 0
	out := e.Run(context.Background(), "apt-update", func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 invocation, got %d", calls)
	}
	if sleeps != 0 {
		t.Fatalf("expected no sleeps, got %d", sleeps)
	}
	if out.Attempts != 1 {
		t.Fatalf("expected Attempts=1, got %d", out.Attempts)
	}
}

func TestRun_FailsThenSucceeds(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, _ := newTestExecutor(t, Policy{Attempts: 5, Delay: 15 * time.Second}, &sleeps)

	calls := 0
	out := e.Run(context.Background(), "fetch-cmake", func(ctx context.Context, attempt int) error {
		calls++
		if calls <= 2 {
			return errors.New("connection timed out")
		}
		return nil
	})

	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 invocations, got %d", calls)
	}
	if sleeps != 2 {
		t.Fatalf("expected 2 sleeps, got %d", sleeps)
	}
}

func TestRun_SucceedsOnFinalAttempt(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, _ := newTestExecutor(t, Policy{Attempts: 5, Delay: 15 * time.Second}, &sleeps)

	calls := 0
	out := e.Run(context.Background(), "fetch-python", func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 5 {
			return errors.New("flaky mirror")
		}
		return nil
	})

	if out.Status != Success {
		t.Fatalf("expected Success, got %v: %v", out.Status, out.Err)
	}
	if calls != 5 {
		t.Fatalf("expected 5 invocations, got %d", calls)
	}
	if sleeps != 4 {
		t.Fatalf("expected 4 sleeps, got %d", sleeps)
	}
}

func TestRun_ExhaustsRetries(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, _ := newTestExecutor(t, Policy{Attempts: 5, Delay: 15 * time.Second}, &sleeps)

	permanent := errors.New("404 not found")
	calls := 0
	out := e.Run(context.Background(), "fetch-ninja", func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})

	if out.Status != ExhaustedRetries {
		t.Fatalf("expected ExhaustedRetries, got %v", out.Status)
	}
	if calls != 5 {
		t.Fatalf("expected 5 invocations, got %d", calls)
	}
	// Sleep happens only between attempts, never after the final failure.
	if sleeps != 4 {
		t.Fatalf("expected 4 sleeps, got %d", sleeps)
	}
	if !errors.Is(out.Err, permanent) {
		t.Fatalf("outcome should wrap the last error, got: %v", out.Err)
	}
	if out.Attempts != 5 {
		t.Fatalf("expected Attempts=5, got %d", out.Attempts)
	}
}

func TestRun_SingleAttemptPolicy(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, _ := newTestExecutor(t, Policy{Attempts: 1, Delay: time.Second}, &sleeps)

	calls := 0
	out := e.Run(context.Background(), "one-shot", func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("boom")
	})

	if out.Status != ExhaustedRetries {
		t.Fatalf("expected ExhaustedRetries, got %v", out.Status)
	}
	if calls != 1 || sleeps != 0 {
		t.Fatalf("expected 1 invocation and 0 sleeps, got %d/%d", calls, sleeps)
	}
}

func TestRun_PolicyNormalization(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, _ := newTestExecutor(t, Policy{Attempts: -3, Delay: -time.Second}, &sleeps)

	if got := e.Policy(); got.Attempts != 1 || got.Delay != 0 {
		t.Fatalf("expected normalized policy {1 0}, got %+v", got)
	}
}

func TestRun_ContextCancelledBetweenAttempts(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, _ := newTestExecutor(t, Policy{Attempts: 5, Delay: 15 * time.Second}, &sleeps)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	out := e.Run(ctx, "cancelled", func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if out.Status != ExhaustedRetries {
		t.Fatalf("expected ExhaustedRetries, got %v", out.Status)
	}
	if calls != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d", calls)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled in outcome, got: %v", out.Err)
	}
}

func TestRun_DiagnosticsIdentifyOpAndAttempt(t *testing.T) {
	t.Parallel()
	sleeps := 0
	e, buf := newTestExecutor(t, Policy{Attempts: 2, Delay: time.Second}, &sleeps)

	e.Run(context.Background(), "apt-install", func(ctx context.Context, attempt int) error {
		return errors.New("dpkg lock held")
	})

	logged := buf.String()
	if !strings.Contains(logged, "apt-install") {
		t.Errorf("diagnostics should name the operation, got: %q", logged)
	}
	if !strings.Contains(logged, "attempt") {
		t.Errorf("diagnostics should include the attempt index, got: %q", logged)
	}
	if !strings.Contains(logged, "all attempts failed") {
		t.Errorf("exhaustion should emit a final diagnostic, got: %q", logged)
	}
}

func TestRun_StatusString(t *testing.T) {
	t.Parallel()
	if Success.String() != "success" {
		t.Errorf("Success.String() = %q", Success.String())
	}
	if ExhaustedRetries.String() != "exhausted retries" {
		t.Errorf("ExhaustedRetries.String() = %q", ExhaustedRetries.String())
	}
}
