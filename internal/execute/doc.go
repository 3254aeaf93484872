// SPDX-License-Identifier: MPL-2.0

// Package execute provides a typed command abstraction over os/exec.
//
// A Command is an argument vector plus structured options (working
// directory, environment, I/O sinks). Commands are never assembled into
// shell strings and never pass through shell evaluation, which removes
// the quoting and injection hazards of string-based execution. The
// Runner interface makes call sites testable with a recording fake.
package execute
