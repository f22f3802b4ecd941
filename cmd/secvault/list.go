package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored provider and its unlock state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx, flagConfigPath, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			statuses, err := a.coordinator.ListProviders(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tUNLOCKED\tCREATED\tLAST USED")

			for _, s := range statuses {
				lastUsed := "-"
				created := "-"

				if s.Metadata != nil {
					created = s.Metadata.CreatedAt.Format("2006-01-02 15:04")

					if s.Metadata.LastUsedAt != nil {
						lastUsed = s.Metadata.LastUsedAt.Format("2006-01-02 15:04")
					}
				}

				fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", s.Provider, s.IsUnlocked, created, lastUsed)
			}

			return w.Flush()
		},
	}
}
