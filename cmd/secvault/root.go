package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagVerbose    bool
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "secvault",
		Short:         "Local secrets vault for third-party API credentials",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a config file")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug-level logging")

	root.AddCommand(
		newSaveCommand(),
		newUnlockCommand(),
		newLockCommand(),
		newLockAllCommand(),
		newDeleteCommand(),
		newListCommand(),
		newChangePasswordCommand(),
		newOrphansCommand(),
	)

	return root
}
