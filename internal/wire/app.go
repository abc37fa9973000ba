package wire

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mithrel/agentipc/internal/config"
	"github.com/mithrel/agentipc/internal/ipc"
	"github.com/mithrel/agentipc/internal/ipc/transport"
	"github.com/mithrel/agentipc/internal/keys"
)

// dialTimeout bounds CLI connects; the transport itself never times out.
const dialTimeout = 5 * time.Second

// App aggregates the major services for easy injection.
type App struct {
	Cfg       *config.Config
	Log       *zap.Logger
	Registry  *transport.Registry
	Connector *ipc.Connector
	Metrics   *ipc.Metrics
	Prom      *prometheus.Registry
	// Tokens is nil when request authentication is disabled.
	Tokens keys.TokenStore
}

// BuildApp wires dependencies with the provided config.
func BuildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}
	tokens, err := keys.Open(cfg)
	if err != nil {
		return nil, err
	}
	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := ipc.GetPrometheusMetrics(prom, "agentipc")
	if err != nil {
		return nil, err
	}
	reg := transport.NewDefaultRegistry()
	return &App{
		Cfg:       cfg,
		Log:       logger,
		Registry:  reg,
		Connector: ipc.NewConnector(reg, ipc.Static(cfg.Endpoint), ipc.WithDialTimeout(dialTimeout)),
		Metrics:   metrics,
		Prom:      prom,
		Tokens:    tokens,
	}, nil
}

// Token returns the shared token for serverName, or nil when
// authentication is disabled.
func (a *App) Token(serverName string) ([]byte, error) {
	if a.Tokens == nil {
		return nil, nil
	}
	return a.Tokens.Get(serverName)
}

// NewServer returns an acceptor bound to the app's endpoint, logger and metrics.
func (a *App) NewServer() *ipc.Server {
	return ipc.NewServer(a.Registry, ipc.Static(a.Cfg.Endpoint),
		ipc.WithLogger(a.Log.Named("ipc")),
		ipc.WithMetrics(a.Metrics))
}
