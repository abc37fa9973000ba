package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mithrel/agentipc/internal/config"
)

// probeTimeout bounds the dial used to tell a live socket from a stale one.
const probeTimeout = 500 * time.Millisecond

// UnixSocketProvider implements the unix-socket transport kind.
type UnixSocketProvider struct {
	identity func() config.Identity
	stat     func(name string) (os.FileInfo, error)
	dial     func(ctx context.Context, path string) (net.Conn, error)
}

type UnixOption func(*UnixSocketProvider)

// WithUnixIdentity fixes the identity used to qualify socket paths.
func WithUnixIdentity(id config.Identity) UnixOption {
	return func(p *UnixSocketProvider) { p.identity = func() config.Identity { return id } }
}

// WithStat replaces the filesystem probe used before connecting.
func WithStat(fn func(name string) (os.FileInfo, error)) UnixOption {
	return func(p *UnixSocketProvider) { p.stat = fn }
}

// WithDialer replaces the socket dial.
func WithDialer(fn func(ctx context.Context, path string) (net.Conn, error)) UnixOption {
	return func(p *UnixSocketProvider) { p.dial = fn }
}

func NewUnixSocketProvider(opts ...UnixOption) *UnixSocketProvider {
	p := &UnixSocketProvider{
		identity: config.CurrentIdentity,
		stat:     os.Stat,
		dial: func(ctx context.Context, path string) (net.Conn, error) {
			d := &net.Dialer{}
			return d.DialContext(ctx, "unix", path)
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *UnixSocketProvider) Kind() config.TransportKind { return config.UnixSocket }

func (p *UnixSocketProvider) NewClient(ep config.Endpoint) (ClientTransport, error) {
	if err := checkKind(ep, config.UnixSocket); err != nil {
		return nil, err
	}
	return &unixClient{p: p, ep: ep, id: p.identity()}, nil
}

func (p *UnixSocketProvider) NewServer(ep config.Endpoint) (ServerTransport, error) {
	if err := checkKind(ep, config.UnixSocket); err != nil {
		return nil, err
	}
	return &unixServer{p: p, ep: ep, id: p.identity()}, nil
}

type unixClient struct {
	p  *UnixSocketProvider
	ep config.Endpoint
	id config.Identity
}

// Connect checks the socket directory, then the socket file, then dials.
// Each step fails with its own ConnectReason and short-circuits the rest.
func (c *unixClient) Connect(ctx context.Context, serverName string) (*Channel, error) {
	addr, err := c.ep.ResolveAddress(serverName, c.id)
	if err != nil {
		return nil, err
	}
	if _, err := c.p.stat(addr.Dir); err != nil {
		return nil, &ConnectError{Reason: ReasonDirMissing, Server: serverName, Addr: addr.Path, Err: err}
	}
	if _, err := c.p.stat(addr.Path); err != nil {
		return nil, &ConnectError{Reason: ReasonEndpointMissing, Server: serverName, Addr: addr.Path, Err: err}
	}
	conn, err := c.p.dial(ctx, addr.Path)
	if err != nil {
		return nil, &ConnectError{Reason: ReasonRefused, Server: serverName, Addr: addr.Path, Err: err}
	}
	return NewChannel(conn), nil
}

type unixServer struct {
	p  *UnixSocketProvider
	ep config.Endpoint
	id config.Identity
}

// Bind prepares <root>/<user>/ and listens on <root>/<user>/<serverName>.
func (s *unixServer) Bind(serverName string) (Listener, error) {
	addr, err := s.ep.ResolveAddress(serverName, s.id)
	if err != nil {
		return nil, err
	}
	if err := ensureSocketRoot(s.ep.SocketDir); err != nil {
		return nil, err
	}
	if err := os.Mkdir(addr.Dir, 0o700); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("create socket dir %s: %w", addr.Dir, err)
	}
	if err := checkDirOwner(addr.Dir); err != nil {
		return nil, err
	}
	unlock, err := lockBind(bindLockPath(addr.Dir, serverName))
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := s.removeStale(addr.Path); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", addr.Path)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrAddressInUse, addr.Path)
		}
		return nil, err
	}
	if err := os.Chmod(addr.Path, 0o600); err != nil {
		_ = l.Close()
		return nil, err
	}
	return newNetListener(l, addr.Path), nil
}

// bindLockPath names the lock file guarding stale-socket removal and listen
// for serverName. Server names never start with a dot, so it cannot collide
// with a socket.
func bindLockPath(dir, serverName string) string {
	return filepath.Join(dir, "."+serverName+".lock")
}

// removeStale deletes a socket file nobody is listening on. A live socket
// or a non-socket file at path is reported as ErrAddressInUse.
func (s *unixServer) removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%w: %s exists and is not a socket", ErrAddressInUse, path)
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if conn, err := s.p.dial(ctx, path); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %s has a live listener", ErrAddressInUse, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

// ensureSocketRoot creates the shared socket root as a sticky,
// world-writable directory so each user can add a private subdirectory.
func ensureSocketRoot(root string) error {
	err := os.Mkdir(root, 0o700)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = os.MkdirAll(root, 0o755)
		}
		if err != nil {
			return fmt.Errorf("create socket root %s: %w", root, err)
		}
	}
	return os.Chmod(root, 0o777|os.ModeSticky)
}

func checkKind(ep config.Endpoint, want config.TransportKind) error {
	if ep.Kind != want {
		return fmt.Errorf("%w: %s provider cannot serve kind %q", config.ErrInvalid, want, ep.Kind)
	}
	return nil
}
