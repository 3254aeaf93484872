// SPDX-License-Identifier: MPL-2.0

package retry

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultAttempts is the default maximum attempt count per operation.
	DefaultAttempts = 5

	// DefaultDelay is the default fixed delay between failed attempts.
	DefaultDelay = 15 * time.Second
)

type (
	// Status is the terminal state of a retry sequence.
	Status int

	// Outcome is the result of running an operation under the executor.
	// The executor itself never fails; only the wrapped operation can,
	// and that failure is carried in Err when Status is ExhaustedRetries.
	Outcome struct {
		// Status is Success or ExhaustedRetries.
		Status Status

		// Attempts is the number of invocations actually performed.
		// It never exceeds the policy's attempt count.
		Attempts int

		// Err is the error from the last failed attempt. Nil on Success.
		Err error
	}

	// Policy bounds a retry sequence: at most Attempts invocations with a
	// fixed Delay between failures. The minimum meaningful Attempts is 1
	// (single attempt, no retry); zero or negative is not supported.
	Policy struct {
		Attempts int
		Delay    time.Duration
	}

	// Op is one invocation of the wrapped operation. attempt is 1-based.
	// The executor does not inspect or modify the operation; a nil return
	// means success, anything else is treated as a failed attempt.
	Op func(ctx context.Context, attempt int) error

	// Executor runs operations under a Policy, strictly sequentially.
	// It holds no state between calls; the zero-value configuration uses
	// DefaultPolicy and logs diagnostics to stderr.
	Executor struct {
		policy Policy
		logger *log.Logger
		sleep  func(time.Duration)
	}

	// Option configures an Executor during construction.
	Option func(*Executor)
)

const (
	// Success means the operation returned nil on some attempt.
	Success Status = iota

	// ExhaustedRetries means every permitted attempt failed.
	ExhaustedRetries
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case ExhaustedRetries:
		return "exhausted retries"
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// Failed reports whether the retry sequence ended without a successful attempt.
func (o Outcome) Failed() bool { return o.Status != Success }

// DefaultPolicy returns the stock policy: 5 attempts, 15 seconds apart.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// Normalize clamps unsupported values to the minimum meaningful policy.
func (p Policy) Normalize() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// WithPolicy sets the executor's retry policy.
func WithPolicy(p Policy) Option {
	return func(e *Executor) {
		e.policy = p
	}
}

// WithLogger overrides the diagnostic logger. The logger must write to the
// error stream (or a capture buffer in tests), never to stdout.
func WithLogger(logger *log.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithSleep overrides the inter-attempt sleep function. Test seam.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// NewExecutor creates an Executor with the given options applied on top of
// the defaults (DefaultPolicy, stderr logger, time.Sleep).
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		policy: DefaultPolicy(),
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "retry"}),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.policy = e.policy.Normalize()
	return e
}

// Policy returns the executor's normalized policy.
func (e *Executor) Policy() Policy { return e.policy }

// Run invokes op until it succeeds or the policy's attempts are exhausted.
// Invocations are strictly sequential: each blocks until it completes before
// the retry-or-return decision is made. The delay is applied only between a
// failed attempt and the next one, never before the first attempt and never
// after the final failure.
//
// ctx is consulted only between attempts: a cancelled context stops the
// sequence early and the outcome reports ExhaustedRetries with the
// cancellation recorded, but a running invocation is never interrupted.
func (e *Executor) Run(ctx context.Context, label string, op Op) Outcome {
	var lastErr error
	for attempt := 1; attempt <= e.policy.Attempts; attempt++ {
		if attempt > 1 {
			if err := ctx.Err(); err != nil {
				e.logger.Error("retry aborted", "op", label, "err", err)
				return Outcome{
					Status:   ExhaustedRetries,
					Attempts: attempt - 1,
					Err:      fmt.Errorf("retry aborted: %w", err),
				}
			}
			e.sleep(e.policy.Delay)
		}

		err := op(ctx, attempt)
		if err == nil {
			return Outcome{Status: Success, Attempts: attempt}
		}
		lastErr = err

		if attempt < e.policy.Attempts {
			e.logger.Warn("attempt failed, will retry",
				"op", label,
				"attempt", attempt,
				"max", e.policy.Attempts,
				"delay", e.policy.Delay,
				"err", err)
		}
	}

	e.logger.Error("all attempts failed",
		"op", label,
		"attempts", e.policy.Attempts,
		"err", lastErr)

	return Outcome{
		Status:   ExhaustedRetries,
		Attempts: e.policy.Attempts,
		Err:      fmt.Errorf("%s failed after %d attempts: %w", label, e.policy.Attempts, lastErr),
	}
}
