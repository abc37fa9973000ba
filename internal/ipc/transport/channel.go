package transport

import (
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
)

// Channel is a blocking, length-framed message channel over one connected
// byte stream. It moves from open to closed exactly once.
//
// A Channel supports one reader and one writer at a time; callers sharing a
// channel across goroutines must serialize their reads and their writes.
type Channel struct {
	rwc     io.ReadWriteCloser
	maxSize int

	closed   atomic.Bool
	once     sync.Once
	closeErr error

	mu     sync.Mutex
	broken error
}

type ChannelOption func(*Channel)

// WithMaxMessageSize bounds the payload size accepted and produced.
func WithMaxMessageSize(n int) ChannelOption {
	return func(c *Channel) {
		if n <= 0 {
			return
		}
		if uint64(n) > math.MaxUint32 {
			n = math.MaxUint32
		}
		c.maxSize = n
	}
}

// NewChannel takes ownership of rwc; closing the channel closes rwc.
func NewChannel(rwc io.ReadWriteCloser, opts ...ChannelOption) *Channel {
	c := &Channel{rwc: rwc, maxSize: DefaultMaxMessageSize}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ReadMessage blocks until one complete message has arrived. It returns
// io.EOF if the peer closed between messages and io.ErrUnexpectedEOF if it
// closed mid-message. Any failure leaves the channel unusable.
func (c *Channel) ReadMessage() ([]byte, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	p, err := readFrame(c.rwc, c.maxSize)
	if err != nil {
		return nil, c.fail(err)
	}
	return p, nil
}

// WriteMessage blocks until the length prefix and all of p are written.
func (c *Channel) WriteMessage(p []byte) error {
	if err := c.usable(); err != nil {
		return err
	}
	if len(p) > c.maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrMessageTooLarge, len(p), c.maxSize)
	}
	if err := writeFrame(c.rwc, p); err != nil {
		return c.fail(err)
	}
	return nil
}

// Close releases the underlying stream. It is safe to call more than once.
func (c *Channel) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

// IsOpen reports whether Close has not been called yet.
func (c *Channel) IsOpen() bool { return !c.closed.Load() }

func (c *Channel) usable() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// fail records the first stream error; a read or write interrupted by
// Close reports ErrClosed instead.
func (c *Channel) fail(err error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken == nil {
		c.broken = err
	}
	return err
}
