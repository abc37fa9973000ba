package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mithrel/agentipc/internal/ipc/transport"
)

// Receiver handles requests addressed to one name.
type Receiver interface {
	Receive(ctx context.Context, req Request) Response
}

type ReceiverFunc func(ctx context.Context, req Request) Response

func (f ReceiverFunc) Receive(ctx context.Context, req Request) Response { return f(ctx, req) }

// Dispatcher routes requests read from a channel to registered receivers and
// writes back their responses. It serves any number of requests per channel.
type Dispatcher struct {
	log   *zap.Logger
	token []byte

	mu        sync.RWMutex
	receivers map[string]Receiver
}

type DispatcherOption func(*Dispatcher)

// RequireToken makes the dispatcher answer AUTH_FAILED to requests not
// signed with token.
func RequireToken(token []byte) DispatcherOption {
	return func(d *Dispatcher) { d.token = token }
}

func NewDispatcher(log *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{log: log, receivers: make(map[string]Receiver)}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) Register(name string, r Receiver) error {
	if name == "" || r == nil {
		return fmt.Errorf("%w: %q", ErrInvalidReceiverKey, name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.receivers[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateReceiver, name)
	}
	d.receivers[name] = r
	return nil
}

// Names returns the registered receiver names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.receivers))
	for n := range d.receivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes the receiver named by req. Unknown receivers yield an
// ERROR response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	d.mu.RLock()
	r, ok := d.receivers[req.Receiver]
	d.mu.RUnlock()
	if !ok {
		return Errorf("unknown receiver %q", req.Receiver)
	}
	return r.Receive(ctx, req)
}

// ServeChannel reads requests until the peer closes the channel or an I/O
// error occurs. A request that fails to decode is answered with ERROR and
// the loop continues, since the framing is still intact.
func (d *Dispatcher) ServeChannel(ctx context.Context, ch *transport.Channel) {
	for {
		msg, err := ch.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				return
			}
			d.log.Warn("command read failed", zap.Error(err))
			return
		}
		var resp Response
		req, err := UnmarshalRequest(msg)
		switch {
		case err != nil:
			resp = Errorf("%v", err)
		case d.token != nil && !Verify(&req, d.token):
			d.log.Warn("command rejected", zap.String("receiver", req.Receiver))
			resp = Response{Type: AuthFailed}
		default:
			resp = d.Dispatch(ctx, req)
			d.log.Debug("command dispatched",
				zap.String("receiver", req.Receiver),
				zap.String("type", string(resp.Type)))
		}
		out, err := resp.Marshal()
		if err != nil {
			d.log.Error("command response encode failed", zap.String("receiver", req.Receiver), zap.Error(err))
			out, _ = Errorf("receiver %q returned an invalid response", req.Receiver).Marshal()
		}
		if err := ch.WriteMessage(out); err != nil {
			d.log.Warn("command write failed", zap.Error(err))
			return
		}
	}
}
