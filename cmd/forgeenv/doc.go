// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for forgeenv.
//
// This package implements the Cobra command hierarchy for the forgeenv
// CLI: the root command, the provision command, and the plan and config
// inspection commands.
package cmd
