// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"forgeenv-cli/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage forgeenv configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Long: `Show the configuration forgeenv would use, after merging
built-in defaults, the config file, and FORGEENV_* environment
variables.`,
		RunE: runConfigShow,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		RunE:  runConfigInit,
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), config.GenerateTOML(cfg))

	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render("Config file already exists: ")+cfgPath)
		return nil
	}

	if err := os.WriteFile(cfgPath, []byte(config.GenerateTOML(config.DefaultConfig())), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Created ")+cfgPath)

	return nil
}
