package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mithrel/agentipc/internal/daemon"
)

func newServeCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent command channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			var opts []daemon.Option
			if cmd.Flags().Changed("http-addr") {
				opts = append(opts, daemon.WithHTTPAddr(httpAddr))
			}
			defer func() { _ = app.Log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving %q over %s\n", app.Cfg.ServerName, app.Cfg.Endpoint.Kind)
			return daemon.Run(ctx, app, opts...)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "health/metrics listen address (overrides agent.http_addr)")
	return cmd
}
