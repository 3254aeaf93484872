// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"forgeenv-cli/internal/plan"
)

var (
	planShowPath string

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Inspect provisioning plans",
	}

	planShowCmd = &cobra.Command{
		Use:   "show",
		Short: "List the steps of a plan",
		Long: `Parse and validate a plan file, then list its steps in
execution order. A plan that fails validation is reported with the
offending steps.`,
		RunE: runPlanShow,
	}
)

func init() {
	planShowCmd.Flags().StringVar(&planShowPath, "plan", "", "plan file (default from config, then ./forgeenv.toml)")
	planCmd.AddCommand(planShowCmd)
}

func runPlanShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	pl, planPath, err := loadPlan(cfg, planShowPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if pl.Description != "" {
		fmt.Fprintln(out, TitleStyle.Render(pl.Description))
	}

	fmt.Fprintln(out, SubtitleStyle.Render(fmt.Sprintf("%s: %d step(s)", planPath, len(pl.Steps))))

	for i := range pl.Steps {
		s := &pl.Steps[i]

		fmt.Fprintf(out, "%2d. %s  %s\n", i+1, StepStyle.Render(s.Name), SubtitleStyle.Render(string(s.Kind)))

		switch s.Kind {
		case plan.KindPackages:
			fmt.Fprintf(out, "      packages: %v\n", s.Packages)
		case plan.KindDownload:
			fmt.Fprintf(out, "      url: %s\n", s.URL)
			if s.SHA256 != "" {
				fmt.Fprintf(out, "      sha256: %s\n", s.SHA256)
			}
			if s.SHA256URL != "" {
				fmt.Fprintf(out, "      sha256 from: %s\n", s.SHA256URL)
			}
		case plan.KindExtract:
			fmt.Fprintf(out, "      archive: %s -> %s\n", s.Archive, s.Dest)
		case plan.KindScript:
			fmt.Fprintln(out, "      inline script")
		}

		for _, dir := range s.Path {
			fmt.Fprintf(out, "      exports PATH entry: %s\n", dir)
		}

		for _, name := range sortedEnvNames(s.Env) {
			fmt.Fprintf(out, "      exports %s=%s\n", name, s.Env[name])
		}
	}

	return nil
}

func sortedEnvNames(env map[string]string) []string {
	names := maps.Keys(env)
	slices.Sort(names)

	return names
}
