package transport

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/agentipc/internal/config"
)

var alice = config.Identity{Name: "alice", UID: "1000"}

// fakeFS answers Stat for a fixed set of paths and records every call.
type fakeFS struct {
	exists map[string]bool
	calls  []string
	dials  []string
	dialFn func(path string) (net.Conn, error)
}

func (f *fakeFS) stat(name string) (os.FileInfo, error) {
	f.calls = append(f.calls, name)
	if f.exists[name] {
		return nil, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (f *fakeFS) dial(_ context.Context, path string) (net.Conn, error) {
	f.dials = append(f.dials, path)
	return f.dialFn(path)
}

func newFakeClient(t *testing.T, f *fakeFS) ClientTransport {
	t.Helper()
	p := NewUnixSocketProvider(WithUnixIdentity(alice), WithStat(f.stat), WithDialer(f.dial))
	c, err := p.NewClient(config.Endpoint{Kind: config.UnixSocket, SocketDir: "/run/agentipc"})
	require.NoError(t, err)
	return c
}

func TestUnixConnectDirMissingShortCircuits(t *testing.T) {
	f := &fakeFS{}
	_, err := newFakeClient(t, f).Connect(context.Background(), "command-channel")

	var ce *ConnectError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, ReasonDirMissing, ce.Reason)
	assert.Equal(t, "command-channel", ce.Server)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, []string{filepath.Join("/run/agentipc", "alice")}, f.calls)
	assert.Empty(t, f.dials)
}

func TestUnixConnectSocketFileMissing(t *testing.T) {
	dir := filepath.Join("/run/agentipc", "alice")
	f := &fakeFS{exists: map[string]bool{dir: true}}
	_, err := newFakeClient(t, f).Connect(context.Background(), "command-channel")

	var ce *ConnectError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, ReasonEndpointMissing, ce.Reason)
	assert.Equal(t, []string{dir, filepath.Join(dir, "command-channel")}, f.calls)
	assert.Empty(t, f.dials)
}

func TestUnixConnectRefused(t *testing.T) {
	dir := filepath.Join("/run/agentipc", "alice")
	sock := filepath.Join(dir, "command-channel")
	f := &fakeFS{
		exists: map[string]bool{dir: true, sock: true},
		dialFn: func(string) (net.Conn, error) { return nil, syscall.ECONNREFUSED },
	}
	_, err := newFakeClient(t, f).Connect(context.Background(), "command-channel")

	var ce *ConnectError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, ReasonRefused, ce.Reason)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Equal(t, []string{dir, sock}, f.calls)
	assert.Equal(t, []string{sock}, f.dials)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), sock)
}

func TestUnixConnectSuccess(t *testing.T) {
	dir := filepath.Join("/run/agentipc", "alice")
	sock := filepath.Join(dir, "command-channel")
	local, remote := net.Pipe()
	defer remote.Close()
	f := &fakeFS{
		exists: map[string]bool{dir: true, sock: true},
		dialFn: func(string) (net.Conn, error) { return local, nil },
	}
	ch, err := newFakeClient(t, f).Connect(context.Background(), "command-channel")
	require.NoError(t, err)
	defer ch.Close()
	assert.True(t, ch.IsOpen())
}

func TestUnixConnectInvalidServerName(t *testing.T) {
	f := &fakeFS{}
	_, err := newFakeClient(t, f).Connect(context.Background(), "../escape")
	require.ErrorIs(t, err, config.ErrInvalidServerName)
	assert.Empty(t, f.calls)
}
