package transport

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
)

// netListener adapts a net.Listener to Listener.
type netListener struct {
	l    net.Listener
	addr string

	closed   atomic.Bool
	once     sync.Once
	closeErr error
}

func newNetListener(l net.Listener, addr string) *netListener {
	return &netListener{l: l, addr: addr}
}

func (l *netListener) Accept() (*Channel, error) {
	conn, err := l.l.Accept()
	if err != nil {
		if l.closed.Load() || errors.Is(err, net.ErrClosed) || isListenerClosed(err) {
			return nil, ErrListenerClosed
		}
		return nil, err
	}
	return NewChannel(conn), nil
}

// Close unblocks a pending Accept. For unix sockets it also unlinks the
// socket file.
func (l *netListener) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		l.closeErr = l.l.Close()
	})
	return l.closeErr
}

func (l *netListener) Addr() string { return l.addr }
