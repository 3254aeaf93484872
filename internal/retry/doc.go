// SPDX-License-Identifier: MPL-2.0

// Package retry implements the bounded-retry executor that wraps every
// externally-fallible provisioning step (package installs, downloads,
// extraction, scripts).
//
// The executor runs an operation up to a fixed number of attempts with a
// fixed delay between failures. It performs no failure classification:
// a permanently broken operation consumes all attempts before the
// ExhaustedRetries outcome is reported. Diagnostics for every failed
// attempt go to the error stream, never to stdout, so callers capturing
// an operation's output are unaffected by retry bookkeeping.
package retry
