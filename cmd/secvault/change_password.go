package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"secvault/internal/providerid"
)

func newChangePasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "change-password <provider>",
		Short: "Re-encrypt a provider's stored key under a new password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			current, err := readPassword("Current vault password: ")
			if err != nil {
				return err
			}

			newPassword, err := readPassword("New vault password: ")
			if err != nil {
				return err
			}

			confirm, err := readPassword("Confirm new vault password: ")
			if err != nil {
				return err
			}

			provider := providerid.Normalize(args[0])

			if err := a.coordinator.ChangePassword(ctx, provider, current, newPassword, confirm); err != nil {
				return errors.New(describeError(err))
			}

			fmt.Printf("Password changed for %q.\n", provider)

			return nil
		},
	}
}
