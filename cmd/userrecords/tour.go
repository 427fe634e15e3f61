package main

import (
	"github.com/spf13/cobra"

	"github.com/CreativeUnicorns/userrecords/tour"
)

func newTourCmd(a *app) *cobra.Command {
	var (
		queries bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "tour",
		Short: "Create a user, list users and preferences, then delete them all",
		Long: `Creates the configured user with a nested preference, lists users and
preferences, optionally runs query examples, and bulk-deletes everything.
This is the default command.`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					a.logger.Error("Failed to close client", "error", err)
				}
			}()

			seed := tour.Seed{
				Name:         a.cfg.Tour.Name,
				Age:          a.cfg.Tour.Age,
				Email:        a.cfg.Tour.Email,
				IsAdmin:      a.cfg.Tour.IsAdmin,
				EmailUpdates: a.cfg.Tour.EmailUpdates,
			}
			opts := []tour.Option{
				tour.WithSeed(seed),
				tour.WithQueries(queries || a.cfg.Tour.Queries),
				tour.WithLogger(a.logger),
			}
			if noColor {
				opts = append(opts, tour.WithColor(false))
			}

			return tour.New(client, cmd.OutOrStdout(), opts...).Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&queries, "queries", "q", false, "also run the query examples")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "print labels without color")

	return cmd
}
