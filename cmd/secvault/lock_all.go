package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLockAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lock-all",
		Short: "Clear the entire session cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.coordinator.LockAll(ctx); err != nil {
				return err
			}

			fmt.Println("Locked all providers.")

			return nil
		},
	}
}
