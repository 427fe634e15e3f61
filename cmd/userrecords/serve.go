package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/CreativeUnicorns/userrecords/api"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listenAddress string

	cmd := &cobra.Command{
		Use:                   "serve",
		Short:                 "Serve users and preferences over HTTP",
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

			if listenAddress == "" {
				listenAddress = a.cfg.HTTP.ListenAddress
			}
			srv, err := api.NewServer(api.Config{ListenAddress: listenAddress, Client: client, Logger: a.logger})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			a.logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return srv.Stop(ctx)
		},
	}

	cmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "HTTP listen address, overrides http.listen_address")

	return cmd
}
