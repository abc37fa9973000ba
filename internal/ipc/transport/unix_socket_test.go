//go:build unix

package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/agentipc/internal/config"
)

// socketRoot returns a short temp dir; t.TempDir can exceed sun_path on macOS.
func socketRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "agentipc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func unixTransports(t *testing.T, root string) (ClientTransport, ServerTransport) {
	t.Helper()
	p := NewUnixSocketProvider(WithUnixIdentity(alice))
	ep := config.Endpoint{Kind: config.UnixSocket, SocketDir: root}
	c, err := p.NewClient(ep)
	require.NoError(t, err)
	s, err := p.NewServer(ep)
	require.NoError(t, err)
	return c, s
}

// staleSocket leaves a socket file behind with nobody listening.
func staleSocket(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	l.SetUnlinkOnClose(false)
	require.NoError(t, l.Close())
}

func TestUnixBindConnectRoundTrip(t *testing.T) {
	root := socketRoot(t)
	client, server := unixTransports(t, root)

	l, err := server.Bind("command-channel")
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, filepath.Join(root, "alice", "command-channel"), l.Addr())

	fi, err := os.Stat(l.Addr())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	assert.NotZero(t, fi.Mode()&os.ModeSocket)
	di, err := os.Stat(filepath.Dir(l.Addr()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), di.Mode().Perm())

	accepted := make(chan *Channel, 1)
	go func() {
		ch, err := l.Accept()
		if err == nil {
			accepted <- ch
		}
	}()

	ch, err := client.Connect(context.Background(), "command-channel")
	require.NoError(t, err)
	defer ch.Close()
	require.True(t, ch.IsOpen())

	var peer *Channel
	select {
	case peer = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	defer peer.Close()

	require.NoError(t, ch.WriteMessage([]byte("start-profiling\x00vm=1")))
	got, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("start-profiling\x00vm=1"), got)

	require.NoError(t, peer.WriteMessage(nil))
	got, err = ch.ReadMessage()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, ch.Close())
	assert.False(t, ch.IsOpen())
	_, err = ch.ReadMessage()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnixConnectFailureReasons(t *testing.T) {
	root := socketRoot(t)
	client, server := unixTransports(t, root)
	ctx := context.Background()

	var ce *ConnectError
	_, err := client.Connect(ctx, "command-channel")
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, ReasonDirMissing, ce.Reason)

	// a closed listener unlinks its socket file
	l, err := server.Bind("command-channel")
	require.NoError(t, err)
	require.NoError(t, l.Close())
	_, err = client.Connect(ctx, "command-channel")
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, ReasonEndpointMissing, ce.Reason)

	staleSocket(t, filepath.Join(root, "alice", "command-channel"))
	_, err = client.Connect(ctx, "command-channel")
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, ReasonRefused, ce.Reason)
}

func TestUnixBindAddressInUse(t *testing.T) {
	_, server := unixTransports(t, socketRoot(t))

	l, err := server.Bind("command-channel")
	require.NoError(t, err)
	defer l.Close()

	_, err = server.Bind("command-channel")
	require.ErrorIs(t, err, ErrAddressInUse)

	// the first listener is untouched
	_, err = os.Stat(l.Addr())
	require.NoError(t, err)
}

func TestUnixBindRemovesStaleSocket(t *testing.T) {
	root := socketRoot(t)
	client, server := unixTransports(t, root)
	staleSocket(t, filepath.Join(root, "alice", "command-channel"))

	l, err := server.Bind("command-channel")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		if ch, err := l.Accept(); err == nil {
			_ = ch.Close()
		}
	}()
	ch, err := client.Connect(context.Background(), "command-channel")
	require.NoError(t, err)
	_ = ch.Close()
}

func TestUnixBindRefusesRegularFile(t *testing.T) {
	root := socketRoot(t)
	_, server := unixTransports(t, root)
	path := filepath.Join(root, "alice", "command-channel")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("not a socket"), 0o600))

	_, err := server.Bind("command-channel")
	require.ErrorIs(t, err, ErrAddressInUse)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a socket", string(data))
}

func TestUnixBindInsecureDir(t *testing.T) {
	root := socketRoot(t)
	_, server := unixTransports(t, root)
	dir := filepath.Join(root, "alice")
	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.Chmod(dir, 0o777))

	_, err := server.Bind("command-channel")
	require.ErrorIs(t, err, ErrInsecureDir)
}

func TestUnixBindCreatesSharedRoot(t *testing.T) {
	root := filepath.Join(socketRoot(t), "nested", "sockets")
	_, server := unixTransports(t, root)

	l, err := server.Bind("command-channel")
	require.NoError(t, err)
	defer l.Close()

	fi, err := os.Stat(root)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSticky)
	assert.Equal(t, os.FileMode(0o777), fi.Mode().Perm())
}

func TestUnixAcceptUnblocksOnClose(t *testing.T) {
	client, server := unixTransports(t, socketRoot(t))
	l, err := server.Bind("command-channel")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrListenerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not unblock")
	}

	_, err = l.Accept()
	assert.ErrorIs(t, err, ErrListenerClosed)
	_, err = client.Connect(context.Background(), "command-channel")
	assert.Error(t, err)
}

func TestUnixBindLockExcludes(t *testing.T) {
	path := bindLockPath(socketRoot(t), "command-channel")
	unlock, err := lockBind(path)
	require.NoError(t, err)

	acquired := make(chan func(), 1)
	go func() {
		u, err := lockBind(path)
		if err == nil {
			acquired <- u
		}
	}()
	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case u := <-acquired:
		u()
	case <-time.After(2 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func TestUnixConcurrentBindOverStaleSocket(t *testing.T) {
	for i := 0; i < 20; i++ {
		root := socketRoot(t)
		client, server := unixTransports(t, root)
		staleSocket(t, filepath.Join(root, "alice", "command-channel"))

		var wg sync.WaitGroup
		ls := make([]Listener, 2)
		errs := make([]error, 2)
		for j := range ls {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				ls[j], errs[j] = server.Bind("command-channel")
			}(j)
		}
		wg.Wait()

		var winner Listener
		for j := range ls {
			if errs[j] == nil {
				require.Nil(t, winner, "both binds succeeded")
				winner = ls[j]
			} else {
				require.ErrorIs(t, errs[j], ErrAddressInUse)
			}
		}
		require.NotNil(t, winner)

		go func() {
			if ch, err := winner.Accept(); err == nil {
				_ = ch.Close()
			}
		}()
		ch, err := client.Connect(context.Background(), "command-channel")
		require.NoError(t, err, "winning listener lost its socket")
		_ = ch.Close()
		require.NoError(t, winner.Close())
	}
}
