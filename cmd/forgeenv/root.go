// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"forgeenv-cli/internal/config"
	"forgeenv-cli/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "forgeenv",
		Short: "A retrying build-environment provisioner",
		Long: TitleStyle.Render("forgeenv") + SubtitleStyle.Render(" - A retrying build-environment provisioner") + `

forgeenv installs the packages, toolchains, and SDKs a build
environment needs, driven by a declarative TOML plan. Every step that
touches the network or the package mirrors runs under a fixed-delay
retry policy, so flaky infrastructure does not abort image builds.

Steps export PATH entries and environment variables explicitly; the
process environment is never mutated. After a successful run the
accumulated exports are rendered into an env.sh profile under the
install prefix.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Write a forgeenv.toml plan describing the environment
  2. Run: forgeenv provision
  3. Source <prefix>/env.sh in your shell profile

` + SubtitleStyle.Render("Examples:") + `
  forgeenv provision                 Run the plan in the working directory
  forgeenv provision --plan ci.toml  Run a specific plan file
  forgeenv provision --dry-run       Show what would happen
  forgeenv plan show                 List the steps of a plan
  forgeenv config show               Show the resolved configuration`,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/forgeenv/config.toml)")

	// Add subcommands
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(newCompletionCommand())
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		reportActionable(os.Stderr, err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// reportActionable prints the remediation guidance attached to an
// actionable error. fang has already rendered the error message itself,
// so this only fires when there are suggestions to add.
func reportActionable(w io.Writer, err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || !ae.HasSuggestions() {
		return
	}

	fmt.Fprintln(w, WarningStyle.Render(formatErrorForDisplay(err, GetVerbose())))
}

// loadConfig resolves the application configuration, honoring the
// --config flag.
func loadConfig(ctx context.Context) (*config.Config, error) {
	return config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}
