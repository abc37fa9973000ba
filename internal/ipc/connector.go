package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mithrel/agentipc/internal/config"
	"github.com/mithrel/agentipc/internal/ipc/transport"
)

// Loader supplies the endpoint configuration used by a Connector or Server.
type Loader func() (config.Endpoint, error)

// FromFile loads the endpoint from a properties file on first use.
func FromFile(path string) Loader {
	return func() (config.Endpoint, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Endpoint{}, err
		}
		return cfg.Endpoint, nil
	}
}

// Static returns ep as is.
func Static(ep config.Endpoint) Loader {
	return func() (config.Endpoint, error) { return ep, nil }
}

// Connector opens message channels to named servers. Configuration is loaded
// and the provider selected once; later calls reuse the client transport.
type Connector struct {
	reg         *transport.Registry
	load        Loader
	dialTimeout time.Duration

	once   sync.Once
	kind   config.TransportKind
	client transport.ClientTransport
	err    error
}

type ConnectorOption func(*Connector)

// WithDialTimeout bounds each connect attempt when the caller's context has
// no deadline of its own.
func WithDialTimeout(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.dialTimeout = d }
}

func NewConnector(reg *transport.Registry, load Loader, opts ...ConnectorOption) *Connector {
	c := &Connector{reg: reg, load: load}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Init loads configuration and selects the transport. It is called
// implicitly by ConnectToServer; calling it early surfaces setup problems at
// startup. The result is sticky and always matches config.ErrInvalid on
// failure.
func (c *Connector) Init() error {
	c.once.Do(func() {
		c.client, c.err = setup(c.reg, c.load, func(p transport.Provider, ep config.Endpoint) (transport.ClientTransport, error) {
			c.kind = ep.Kind
			return p.NewClient(ep)
		})
	})
	return c.err
}

// Kind returns the selected transport kind, or "" before a successful Init.
func (c *Connector) Kind() config.TransportKind {
	if c.Init() != nil {
		return ""
	}
	return c.kind
}

// ConnectToServer returns an open channel to serverName. Setup failures
// match config.ErrInvalid; reachability failures are *transport.ConnectError.
func (c *Connector) ConnectToServer(ctx context.Context, serverName string) (*transport.Channel, error) {
	if err := c.Init(); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok && c.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
		defer cancel()
	}
	return c.client.Connect(ctx, serverName)
}

// setup runs load, lookup and create, normalising every failure into a
// configuration error.
func setup[T any](reg *transport.Registry, load Loader, create func(transport.Provider, config.Endpoint) (T, error)) (T, error) {
	var zero T
	if reg == nil {
		return zero, fmt.Errorf("%w: %w", config.ErrInvalid, transport.ErrNoTransport)
	}
	ep, err := load()
	if err != nil {
		return zero, asConfigError("load endpoint configuration", err)
	}
	p, err := reg.Lookup(ep.Kind)
	if err != nil {
		return zero, err
	}
	t, err := create(p, ep)
	if err != nil {
		return zero, asConfigError(fmt.Sprintf("create %s transport", ep.Kind), err)
	}
	return t, nil
}

func asConfigError(op string, err error) error {
	if errors.Is(err, config.ErrInvalid) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, config.ErrInvalid, err)
}
