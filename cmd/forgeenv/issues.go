// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"forgeenv-cli/internal/issue"
)

var issuesCmd = &cobra.Command{
	Use:   "issues [id]",
	Short: "Explain known failure modes",
	Long: `List the failure modes forgeenv can diagnose, or render the
remediation guide for one of them by numeric id.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIssues,
}

func init() {
	rootCmd.AddCommand(issuesCmd)
}

func runIssues(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		values := issue.Values()
		slices.SortFunc(values, func(a, b *issue.Issue) int {
			return int(a.Id() - b.Id())
		})

		for _, iss := range values {
			fmt.Fprintf(out, "%3d  %s\n", iss.Id(), StepStyle.Render(firstLine(string(iss.MarkdownMsg()))))
		}

		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("issue id must be numeric: %q", args[0])
	}

	iss := issue.Get(issue.Id(id))
	if iss == nil {
		return fmt.Errorf("unknown issue id %d", id)
	}

	rendered, err := iss.Render("dark")
	if err != nil {
		return err
	}

	fmt.Fprintln(out, rendered)

	return nil
}

// firstLine returns the first non-empty line of a markdown message,
// stripped of heading markers.
func firstLine(md string) string {
	for _, line := range strings.Split(md, "\n") {
		if line = strings.TrimLeft(line, "# "); line != "" {
			return line
		}
	}

	return ""
}
