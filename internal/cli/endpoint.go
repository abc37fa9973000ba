package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mithrel/agentipc/internal/config"
)

func newEndpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoint [server]",
		Short: "Print the address a server name resolves to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			name := app.Cfg.ServerName
			if len(args) == 1 {
				name = args[0]
			}
			addr, err := app.Cfg.Endpoint.ResolveAddress(name, config.CurrentIdentity())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
}
