package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newOrphansCommand() *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Detect (and optionally clean up) keys orphaned by a lost device binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			report := a.revocation.CheckForOrphanedKeys(ctx)
			if !report.HasOrphans {
				fmt.Println("No orphaned keys found.")
				return nil
			}

			fmt.Println(report.HumanMessage)

			for _, p := range report.Providers {
				fmt.Printf("  - %s\n", p)
			}

			if cleanup {
				if err := a.revocation.CleanupOrphanedKeys(ctx); err != nil {
					return err
				}

				fmt.Println("Orphaned keys removed.")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove the orphaned key store entry")

	return cmd
}
