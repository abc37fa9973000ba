package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mithrel/agentipc/internal/command"
	"github.com/mithrel/agentipc/internal/ipc"
	"github.com/mithrel/agentipc/internal/wire"
)

type runOptions struct {
	httpAddr string
}

type Option func(*runOptions)

// WithHTTPAddr overrides agent.http_addr; an empty addr disables HTTP.
func WithHTTPAddr(addr string) Option {
	return func(o *runOptions) {
		o.httpAddr = addr
	}
}

// Run starts the agent using the provided, already-wired App. It binds the
// configured server name, serves the command dispatcher on it and, when
// agent.http_addr is set, exposes /healthz and /metrics. The caller controls
// the lifecycle via ctx; Run returns nil once ctx is done.
func Run(ctx context.Context, app *wire.App, opts ...Option) error {
	ro := runOptions{httpAddr: app.Cfg.HTTPAddr}
	for _, o := range opts {
		o(&ro)
	}
	name := app.Cfg.ServerName
	var dopts []command.DispatcherOption
	tok, err := app.Token(name)
	if err != nil {
		return fmt.Errorf("load auth token: %w", err)
	}
	if tok != nil {
		dopts = append(dopts, command.RequireToken(tok))
	}
	d := command.NewDispatcher(app.Log.Named("command"), dopts...)
	if err := command.RegisterBuiltins(d, name, time.Now()); err != nil {
		return err
	}

	srv := app.NewServer()
	if err := srv.Bind(name); err != nil {
		return err
	}

	var l net.Listener
	if addr := ro.httpAddr; addr != "" {
		l, err = net.Listen("tcp", addr)
		if err != nil {
			_ = srv.Close()
			return fmt.Errorf("http listen %s: %w", addr, err)
		}
	}
	return serve(ctx, app, srv, d, l)
}

func serve(ctx context.Context, app *wire.App, srv *ipc.Server, h ipc.Handler, l net.Listener) error {
	app.Log.Info("agent started",
		zap.String("server", app.Cfg.ServerName),
		zap.String("addr", srv.Addr()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, h) })
	if l != nil {
		app.Log.Info("http listening", zap.String("addr", l.Addr().String()))
		g.Go(func() error { return Start(gctx, l, app, srv) })
	}
	err := g.Wait()
	app.Log.Info("agent stopped", zap.Error(err))
	return err
}

// Start launches the HTTP server on a provided listener (used by tests or CLI control).
func Start(ctx context.Context, l net.Listener, app *wire.App, srv *ipc.Server) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if srv.Addr() == "" {
			http.Error(w, "ipc not bound", http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", promhttp.HandlerFor(app.Prom, promhttp.HandlerOpts{}))
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = hs.Shutdown(context.Background())
	}()
	if err := hs.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
