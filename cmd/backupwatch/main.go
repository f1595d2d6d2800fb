package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "backupwatch",
		Short:   "Monitor backup directories and raise alerts",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newCheckCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newInitCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
