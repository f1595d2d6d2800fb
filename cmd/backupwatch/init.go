package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backupwatch/backupwatch/internal/config"
)

// newInitCmd creates the init subcommand.
func newInitCmd() *cobra.Command {
	configPath := "config.yaml"
	force := false

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", configPath)
				}
			}

			if err := config.SaveExample(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote example configuration to %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Destination path")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
