package transport

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedConn delivers at most chunk bytes per Read or Write call.
type chunkedConn struct {
	buf    bytes.Buffer
	chunk  int
	writes int
	closes int
}

func (c *chunkedConn) Read(p []byte) (int, error) {
	if len(p) > c.chunk {
		p = p[:c.chunk]
	}
	return c.buf.Read(p)
}

func (c *chunkedConn) Write(p []byte) (int, error) {
	c.writes++
	if len(p) > c.chunk {
		p = p[:c.chunk]
	}
	return c.buf.Write(p)
}

func (c *chunkedConn) Close() error {
	c.closes++
	return nil
}

// stuckWriter accepts nothing and reports no error.
type stuckWriter struct{ chunkedConn }

func (w *stuckWriter) Write(p []byte) (int, error) { return 0, nil }

func frame(n uint32, payload []byte) []byte {
	b := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(b, n)
	return append(b, payload...)
}

func pipePair(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	a, b := net.Pipe()
	ca, cb := NewChannel(a), NewChannel(b)
	t.Cleanup(func() {
		_ = ca.Close()
		_ = cb.Close()
	})
	return ca, cb
}

func TestChannelRoundTripPayloads(t *testing.T) {
	big := make([]byte, 1<<20)
	_, err := rand.Read(big)
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":          {},
		"zeros":          {0, 0, 0, 0, 0},
		"embedded zeros": []byte("a\x00b\x00\x00c"),
		"text":           []byte("kill-vm pid=4242"),
		"1MiB random":    big,
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			client, server := pipePair(t)
			errc := make(chan error, 1)
			go func() { errc <- client.WriteMessage(msg) }()

			got, err := server.ReadMessage()
			require.NoError(t, err)
			require.NoError(t, <-errc)
			assert.Equal(t, len(msg), len(got))
			assert.True(t, bytes.Equal(msg, got))
		})
	}
}

func TestChannelPreservesOrder(t *testing.T) {
	client, server := pipePair(t)
	go func() {
		for i := 0; i < 10; i++ {
			_ = client.WriteMessage([]byte{byte(i)})
		}
	}()
	for i := 0; i < 10; i++ {
		got, err := server.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, got)
	}
}

func TestChannelShortReadsAndWrites(t *testing.T) {
	conn := &chunkedConn{chunk: 3}
	ch := NewChannel(conn)

	msg := []byte("a message longer than one chunk")
	require.NoError(t, ch.WriteMessage(msg))
	assert.Greater(t, conn.writes, 1)

	got, err := ch.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestChannelWriteNoProgress(t *testing.T) {
	ch := NewChannel(&stuckWriter{})
	err := ch.WriteMessage([]byte("x"))
	require.ErrorIs(t, err, io.ErrShortWrite)

	// the stream may hold half a frame now
	assert.ErrorIs(t, ch.WriteMessage([]byte("y")), io.ErrShortWrite)
}

func TestChannelCleanEOF(t *testing.T) {
	ch := NewChannel(&chunkedConn{chunk: 64})
	_, err := ch.ReadMessage()
	assert.Equal(t, io.EOF, err)
}

func TestChannelTruncatedFrame(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		conn := &chunkedConn{chunk: 64}
		conn.buf.Write([]byte{0, 0})
		_, err := NewChannel(conn).ReadMessage()
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})
	t.Run("payload", func(t *testing.T) {
		conn := &chunkedConn{chunk: 64}
		conn.buf.Write(frame(10, []byte("abc")))
		ch := NewChannel(conn)
		_, err := ch.ReadMessage()
		assert.Equal(t, io.ErrUnexpectedEOF, err)

		// no resumption of a partial message
		conn.buf.Write(frame(1, []byte("z")))
		_, err = ch.ReadMessage()
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})
}

func TestChannelMessageTooLarge(t *testing.T) {
	conn := &chunkedConn{chunk: 64}
	ch := NewChannel(conn, WithMaxMessageSize(8))

	// oversized writes are rejected up front and leave the channel usable
	require.ErrorIs(t, ch.WriteMessage(make([]byte, 9)), ErrMessageTooLarge)
	assert.Zero(t, conn.writes)
	require.NoError(t, ch.WriteMessage(make([]byte, 8)))

	conn.buf.Reset()
	conn.buf.Write(frame(0xFFFFFFFF, nil))
	_, err := ch.ReadMessage()
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestChannelClosed(t *testing.T) {
	conn := &chunkedConn{chunk: 64}
	ch := NewChannel(conn)
	require.True(t, ch.IsOpen())

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.False(t, ch.IsOpen())
	assert.Equal(t, 1, conn.closes)

	_, err := ch.ReadMessage()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ch.WriteMessage([]byte("x")), ErrClosed)
	assert.Zero(t, conn.writes)
}

func TestChannelCloseUnblocksRead(t *testing.T) {
	_, server := pipePair(t)
	errc := make(chan error, 1)
	go func() {
		_, err := server.ReadMessage()
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, server.Close())

	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock after close")
	}
}

func TestChannelPeerClose(t *testing.T) {
	client, server := pipePair(t)
	require.NoError(t, client.Close())
	_, err := server.ReadMessage()
	assert.Equal(t, io.EOF, err)
	assert.True(t, server.IsOpen())
}
