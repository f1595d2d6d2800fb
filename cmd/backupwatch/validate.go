package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backupwatch/backupwatch/internal/config"
)

// newValidateCmd creates the validate subcommand.
func newValidateCmd() *cobra.Command {
	configPath := "config.yaml"

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file without running any checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK: %d check(s)\n", len(cfg.Checks))
			for _, check := range cfg.Checks {
				fmt.Fprintf(out, "  %s: %s (last %d days, min %s)\n",
					check.Name, check.BackupDir, check.Days, check.MinSize)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Path to the YAML configuration file")

	return cmd
}
