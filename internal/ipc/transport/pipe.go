package transport

import (
	"context"
	"fmt"

	"github.com/mithrel/agentipc/internal/config"
)

// NamedPipeProvider implements the windows-named-pipe transport kind. On
// other platforms it refuses to create transports with ErrUnsupported.
type NamedPipeProvider struct {
	identity func() config.Identity
}

type PipeOption func(*NamedPipeProvider)

// WithPipeIdentity fixes the identity substituted for {user}.
func WithPipeIdentity(id config.Identity) PipeOption {
	return func(p *NamedPipeProvider) { p.identity = func() config.Identity { return id } }
}

func NewNamedPipeProvider(opts ...PipeOption) *NamedPipeProvider {
	p := &NamedPipeProvider{identity: config.CurrentIdentity}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *NamedPipeProvider) Kind() config.TransportKind { return config.WindowsNamedPipe }

func (p *NamedPipeProvider) NewClient(ep config.Endpoint) (ClientTransport, error) {
	if err := p.check(ep); err != nil {
		return nil, err
	}
	return &pipeClient{ep: ep, id: p.identity()}, nil
}

func (p *NamedPipeProvider) NewServer(ep config.Endpoint) (ServerTransport, error) {
	if err := p.check(ep); err != nil {
		return nil, err
	}
	return &pipeServer{ep: ep, id: p.identity()}, nil
}

func (p *NamedPipeProvider) check(ep config.Endpoint) error {
	if err := checkKind(ep, config.WindowsNamedPipe); err != nil {
		return err
	}
	if !pipeSupported {
		return fmt.Errorf("%w: %w: %s", config.ErrInvalid, ErrUnsupported, config.WindowsNamedPipe)
	}
	return nil
}

type pipeClient struct {
	ep config.Endpoint
	id config.Identity
}

func (c *pipeClient) Connect(ctx context.Context, serverName string) (*Channel, error) {
	addr, err := c.ep.ResolveAddress(serverName, c.id)
	if err != nil {
		return nil, err
	}
	conn, err := dialPipe(ctx, addr.Path)
	if err != nil {
		return nil, &ConnectError{Reason: pipeReason(err), Server: serverName, Addr: addr.Path, Err: err}
	}
	return NewChannel(conn), nil
}

type pipeServer struct {
	ep config.Endpoint
	id config.Identity
}

// Bind creates the first instance of the pipe; a pipe already served by a
// live process is reported as ErrAddressInUse.
func (s *pipeServer) Bind(serverName string) (Listener, error) {
	addr, err := s.ep.ResolveAddress(serverName, s.id)
	if err != nil {
		return nil, err
	}
	l, err := listenPipe(addr.Path)
	if err != nil {
		if isPipeInUse(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAddressInUse, addr.Path, err)
		}
		return nil, err
	}
	return newNetListener(l, addr.Path), nil
}
