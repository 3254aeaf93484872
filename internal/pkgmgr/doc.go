// SPDX-License-Identifier: MPL-2.0

// Package pkgmgr drives the OS package manager for packages steps.
//
// Only apt (Debian/Ubuntu) is implemented, matching the ubuntu:22.04
// build environments the plans target. Invocations are built as typed
// argument vectors and run non-interactively; the manager performs no
// dependency resolution of its own; that is apt's job.
package pkgmgr
