// SPDX-License-Identifier: MPL-2.0

// Package plan defines the declarative provisioning plan format.
//
// A plan is a TOML file holding an ordered list of steps. Step order in
// the file is execution order. Four step kinds exist: packages (OS
// package installation), download (archive fetch with verification),
// extract (archive unpacking), and script (inline shell in the embedded
// interpreter). Any step may additionally export PATH entries and
// environment variables that later steps observe.
//
// Tool versions, URLs, and hashes all live in plan files, not in code:
// bumping a toolchain means editing a plan, not rebuilding forgeenv.
package plan
