package transport

import (
	"context"

	"github.com/mithrel/agentipc/internal/config"
)

// Provider creates client and server transports for one transport kind.
type Provider interface {
	Kind() config.TransportKind
	NewClient(ep config.Endpoint) (ClientTransport, error)
	NewServer(ep config.Endpoint) (ServerTransport, error)
}

// ClientTransport opens connections to named servers.
type ClientTransport interface {
	// Connect resolves serverName and returns a connected channel. It does
	// not retry; ctx only bounds the dial itself.
	Connect(ctx context.Context, serverName string) (*Channel, error)
}

// ServerTransport binds named endpoints.
type ServerTransport interface {
	Bind(serverName string) (Listener, error)
}

// Listener owns a bound endpoint.
type Listener interface {
	// Accept blocks until a client connects. After Close it returns
	// ErrListenerClosed.
	Accept() (*Channel, error)
	Close() error
	Addr() string
}
