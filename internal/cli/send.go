package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/mithrel/agentipc/internal/command"
	"github.com/mithrel/agentipc/internal/ipc/transport"
	"github.com/mithrel/agentipc/internal/present"
	"github.com/mithrel/agentipc/internal/wire"
)

type sendOptions struct {
	server  string
	retries uint64
	backoff time.Duration
	output  string
	headers bool
}

func (o *sendOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.server, "server", "", "server name (default agent.server_name)")
	cmd.Flags().Uint64Var(&o.retries, "retry", 0, "retry this many times while the server is unreachable")
	cmd.Flags().DurationVar(&o.backoff, "retry-base", 100*time.Millisecond, "initial retry backoff")
	cmd.Flags().StringVarP(&o.output, "output", "o", "text", "output format: text|json|ndjson")
	cmd.Flags().BoolVar(&o.headers, "headers", false, "print text output as a key/value table")
}

func newSendCmd() *cobra.Command {
	var opts sendOptions
	cmd := &cobra.Command{
		Use:   "send <receiver> [key=value...]",
		Short: "Send one request to the agent and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := present.ParseMode(opts.output); !ok {
				return fmt.Errorf("unknown output format %q", opts.output)
			}
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			app := getApp(cmd)
			resp, err := call(cmd.Context(), app, opts, command.Request{Receiver: args[0], Params: params})
			if err != nil {
				return err
			}
			if err := printResponse(cmd.OutOrStdout(), resp, opts.output, opts.headers); err != nil {
				return err
			}
			return responseError(args[0], resp)
		},
	}
	opts.bind(cmd)
	return cmd
}

// call sends req, retrying only connection failures; setup errors and
// mid-stream failures are returned at once.
func call(ctx context.Context, app *wire.App, opts sendOptions, req command.Request) (command.Response, error) {
	server := opts.server
	if server == "" {
		server = app.Cfg.ServerName
	}
	tok, err := app.Token(server)
	if err != nil {
		return command.Response{}, fmt.Errorf("load auth token: %w", err)
	}
	if tok != nil {
		req = command.Sign(req, tok)
	}
	b := retry.WithMaxRetries(opts.retries, retry.NewExponential(opts.backoff))
	var resp command.Response
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		resp, err = command.Call(ctx, app.Connector, server, req)
		var ce *transport.ConnectError
		if errors.As(err, &ce) {
			return retry.RetryableError(err)
		}
		return err
	})
	return resp, err
}

func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q: want key=value", a)
		}
		params[k] = v
	}
	return params, nil
}

func printResponse(w io.Writer, resp command.Response, output string, headers bool) error {
	mode, ok := present.ParseMode(output)
	if !ok {
		return fmt.Errorf("unknown output format %q", output)
	}
	return present.RenderResponse(w, resp, present.Options{Mode: mode, JSONIndent: true, Headers: headers})
}

func responseError(receiver string, resp command.Response) error {
	switch resp.Type {
	case command.OK, command.NOOP:
		return nil
	case command.Error:
		return fmt.Errorf("%s: %s", receiver, resp.Get("error"))
	default:
		return fmt.Errorf("%s: %s", receiver, resp.Type)
	}
}
