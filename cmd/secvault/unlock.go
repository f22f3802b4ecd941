package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"secvault/internal/providerid"
)

func newUnlockCommand() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "unlock <provider>",
		Short: "Decrypt and cache a provider's API key for the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			password, err := readPassword("Vault password: ")
			if err != nil {
				return err
			}

			provider := providerid.Normalize(args[0])

			apiKey, err := a.coordinator.Unlock(ctx, provider, password)
			if err != nil {
				return errors.New(describeError(err))
			}

			if show {
				fmt.Println(apiKey)
			} else {
				fmt.Printf("Unlocked %q: %s\n", provider, maskedAPIKey(apiKey))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "print the decrypted key instead of a masked preview")

	return cmd
}
