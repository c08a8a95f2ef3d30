package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/padaiyal/browserfixture/fixture"
)

func getServeCmd(logger *logrus.Logger, stdout io.Writer) *cobra.Command {
	var (
		manifest string
		host     string
		port     int
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve fixtures described by a manifest",
		Long: `Serve fixtures described by a YAML or JSON manifest.

The base URL is printed on stdout once the server accepts connections.
The server runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fixture.LoadManifest(manifest)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			srv, err := fixture.Start(cmd.Context(), cfg, fixture.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() {
				if err := srv.Close(); err != nil {
					logger.WithError(err).Warn("Fixture server did not stop cleanly")
				}
			}()
			fmt.Fprintln(stdout, srv.BaseURL())

			<-cmd.Context().Done()
			logger.Debug("Interrupted, stopping fixture server")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(ctx)
		},
	}

	serveCmd.Flags().StringVarP(&manifest, "manifest", "m", "", "fixture manifest (.yaml, .yml or .json)")
	serveCmd.Flags().StringVar(&host, "host", fixture.DefaultHost, "address to listen on, overrides the manifest")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on, overrides the manifest (0 picks a free port)")
	_ = serveCmd.MarkFlagRequired("manifest")
	return serveCmd
}
