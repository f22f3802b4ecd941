package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"secvault/internal/providerid"
)

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete a provider's stored key from the vault and the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			provider := providerid.Normalize(args[0])

			if err := a.coordinator.DeleteKey(ctx, provider); err != nil {
				return err
			}

			fmt.Printf("Deleted %q.\n", provider)

			return nil
		},
	}
}
