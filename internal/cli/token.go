package cli

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mithrel/agentipc/internal/config"
	"github.com/mithrel/agentipc/internal/keys"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the shared token that authenticates requests",
	}
	cmd.AddCommand(newTokenGenerateCmd())
	cmd.AddCommand(newTokenClearCmd())
	return cmd
}

func newTokenGenerateCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create a new token for a server name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			if server == "" {
				server = app.Cfg.ServerName
			}
			tok, err := keys.NewToken()
			if err != nil {
				return err
			}
			if app.Cfg.Auth == config.AuthKeyring {
				if !keys.KeyringAvailable() {
					return fmt.Errorf("agent.auth = keyring but no system keyring is available")
				}
				if err := app.Tokens.Put(server, tok); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %q in the system keyring\n", server)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "agent.auth = config\nagent.auth_token = %s\n", base64.StdEncoding.EncodeToString(tok))
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "server name (default agent.server_name)")
	return cmd
}

func newTokenClearCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove a server's token from the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			if app.Cfg.Auth != config.AuthKeyring {
				return fmt.Errorf("agent.auth is %q; only keyring tokens can be cleared", app.Cfg.Auth)
			}
			if server == "" {
				server = app.Cfg.ServerName
			}
			if err := app.Tokens.Delete(server); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed token for %q\n", server)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "server name (default agent.server_name)")
	return cmd
}
