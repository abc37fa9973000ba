package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mithrel/agentipc/internal/command"
)

func newPingCmd() *cobra.Command {
	var opts sendOptions
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the agent answers on its command channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			start := time.Now()
			resp, err := call(cmd.Context(), app, opts, command.Request{Receiver: "ping"})
			if err != nil {
				return err
			}
			if err := responseError("ping", resp); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pong from %s (pid %s, up %s) in %s\n",
				resp.Get("server"), resp.Get("pid"), resp.Get("uptime"), time.Since(start).Round(time.Microsecond))
			return nil
		},
	}
	opts.bind(cmd)
	_ = cmd.Flags().MarkHidden("output")
	_ = cmd.Flags().MarkHidden("headers")
	return cmd
}
