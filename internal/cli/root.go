package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mithrel/agentipc/internal/config"
	"github.com/mithrel/agentipc/internal/wire"
)

type ctxKey string

const appKey ctxKey = "app"

// skipConfig marks commands that must run without a loadable config file.
const skipConfig = "agentipc/skip-config"

// Execute builds the root command and runs it.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the Cobra root command and wires dependencies.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "agentipc",
		Short:         "agentipc: local command channel for the monitoring agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for c := cmd; c != nil; c = c.Parent() {
				if _, ok := c.Annotations[skipConfig]; ok {
					return nil
				}
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			app, err := wire.BuildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appKey, app))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to ipc.properties (default "+config.DefaultConfigPath()+")")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newPingCmd())
	cmd.AddCommand(newEndpointCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newCompletionCmd())

	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Help() }

	return cmd
}

func getApp(cmd *cobra.Command) *wire.App {
	v := cmd.Context().Value(appKey)
	if v == nil {
		fmt.Fprintln(os.Stderr, "internal error: app not initialized")
		os.Exit(1)
	}
	return v.(*wire.App)
}
