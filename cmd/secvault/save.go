package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"secvault/internal/coordinator"
	"secvault/internal/providerid"
)

func newSaveCommand() *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "save <provider>",
		Short: "Encrypt and store an API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if apiKey == "" {
				key, readErr := readPassword("API key: ")
				if readErr != nil {
					return readErr
				}

				apiKey = key
			}

			password, err := readPassword("Vault password: ")
			if err != nil {
				return err
			}

			confirm, err := readPassword("Confirm vault password: ")
			if err != nil {
				return err
			}

			provider := providerid.Normalize(args[0])

			err = a.coordinator.SaveKey(ctx, coordinator.SaveRequest{
				Provider:        provider,
				APIKey:          apiKey,
				Password:        password,
				ConfirmPassword: confirm,
			})
			if err != nil {
				return errors.New(describeError(err))
			}

			fmt.Printf("Saved and unlocked key for %q.\n", provider)

			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key value (prompted if omitted)")

	return cmd
}
