// SPDX-License-Identifier: MPL-2.0

// Package provision executes provisioning plans.
//
// The Provisioner walks a plan's steps in order, running each one
// through the retry executor. A step that still fails after the final
// attempt aborts the run. Steps never mutate the process environment;
// instead an immutable Environment value accumulates the PATH entries
// and variables each successful step exports, and later steps (and the
// rendered env.sh profile) observe it explicitly.
package provision
