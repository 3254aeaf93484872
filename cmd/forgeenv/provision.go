// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"forgeenv-cli/internal/config"
	executepkg "forgeenv-cli/internal/execute"
	"forgeenv-cli/internal/fetch"
	"forgeenv-cli/internal/issue"
	"forgeenv-cli/internal/plan"
	"forgeenv-cli/internal/provision"
	"forgeenv-cli/internal/retry"
)

var (
	provisionPlanPath string
	provisionPrefix   string
	provisionCacheDir string
	provisionDryRun   bool
	provisionOnly     []string

	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Run a provisioning plan",
		Long: `Run the steps of a provisioning plan in order.

Each step runs under the configured retry policy. A step that still
fails after the final attempt aborts the run; completed steps are not
rolled back, and a later run resumes from cached downloads.`,
		RunE: runProvision,
	}
)

func init() {
	provisionCmd.Flags().StringVar(&provisionPlanPath, "plan", "", "plan file (default from config, then ./forgeenv.toml)")
	provisionCmd.Flags().StringVar(&provisionPrefix, "prefix", "", "install prefix (default from config)")
	provisionCmd.Flags().StringVar(&provisionCacheDir, "cache-dir", "", "download cache directory (default from config)")
	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "show what each step would do without executing")
	provisionCmd.Flags().StringSliceVar(&provisionOnly, "only", nil, "run only the named steps")
}

func runProvision(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	pl, planPath, err := loadPlan(cfg, provisionPlanPath)
	if err != nil {
		return err
	}

	cacheDir, prefix, err := resolveDirs(cfg)
	if err != nil {
		return err
	}

	logger := newLogger(verbose || cfg.Verbose)
	logger.Debug("resolved paths", "plan", planPath, "cache", cacheDir, "prefix", prefix)

	provisioner := provision.New(
		provision.WithCacheDir(cacheDir),
		provision.WithInstallPrefix(prefix),
		provision.WithExecutor(retry.NewExecutor(
			retry.WithPolicy(cfg.Retry.Policy()),
			retry.WithLogger(logger),
		)),
		provision.WithClient(fetch.NewClient(fetch.WithUserAgent("forgeenv/"+Version))),
		provision.WithLogger(logger),
		provision.WithDryRun(provisionDryRun),
		provision.WithOnly(provisionOnly...),
	)

	env, err := provisioner.Run(cmd.Context(), pl)
	if err != nil {
		var exitErr *executepkg.UnexpectedExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.Code, Err: err}
		}

		return err
	}

	if provisionDryRun {
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Dry run complete."))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Environment ready."))

	if len(env.PathEntries()) > 0 || len(env.VarNames()) > 0 {
		profile := provision.ProfileFileName
		fmt.Fprintf(cmd.OutOrStdout(), "Source %s to use the provisioned tools:\n", profile)
		fmt.Fprintf(cmd.OutOrStdout(), "  . %s/%s\n", prefix, profile)
	}

	return nil
}

// loadPlan resolves the plan path (flag, then config, then the default
// file name) and loads it.
func loadPlan(cfg *config.Config, flagPath string) (*plan.Plan, string, error) {
	planPath := flagPath
	if planPath == "" {
		planPath = cfg.Plan
	}

	if planPath == "" {
		planPath = config.DefaultPlanFileName
	}

	pl, err := plan.Load(planPath)
	if err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load plan").
			WithResource(planPath).
			WithSuggestion("Check the plan file exists and contains valid TOML").
			WithSuggestion("Use 'forgeenv plan show --plan <file>' to inspect a plan").
			Wrap(err).
			BuildError()
	}

	return pl, planPath, nil
}

// resolveDirs resolves the cache directory and install prefix from
// flags, config, and platform defaults, in that order.
func resolveDirs(cfg *config.Config) (cacheDir, prefix string, err error) {
	cacheDir = provisionCacheDir
	if cacheDir == "" {
		cacheDir = cfg.CacheDir
	}

	if cacheDir == "" {
		cacheDir, err = config.CacheDir()
		if err != nil {
			return "", "", err
		}
	}

	prefix = provisionPrefix
	if prefix == "" {
		prefix = cfg.InstallPrefix
	}

	if prefix == "" {
		prefix, err = config.InstallPrefixDir()
		if err != nil {
			return "", "", err
		}
	}

	return cacheDir, prefix, nil
}

func newLogger(verboseMode bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "forgeenv",
		ReportTimestamp: true,
	})

	if verboseMode {
		logger.SetLevel(log.DebugLevel)
	}

	return logger
}
