package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"secvault/internal/providerid"
)

func newLockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <provider>",
		Short: "Remove a provider's key from the session cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			provider := providerid.Normalize(args[0])

			if err := a.coordinator.Lock(ctx, provider); err != nil {
				return err
			}

			fmt.Printf("Locked %q.\n", provider)

			return nil
		},
	}
}
